package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"github.com/samber/oops"

	mailer "mailauth/internal/mail"
	"mailauth/internal/models"
	"mailauth/internal/store"
)

// Client-facing messages.
const (
	MsgMissingDetails        = "Missing Details"
	MsgInvalidEmailFormat    = "invalid email format"
	MsgPasswordTooLong       = "password must be at most 72 bytes"
	MsgUserExists            = "User already exists"
	MsgLoginRequired         = "email and password are required"
	MsgInvalidEmail          = "invalid email"
	MsgInvalidPassword       = "invalid password"
	MsgAlreadyVerified       = "account already verified"
	MsgVerifyDetailsRequired = "missing details"
	MsgEmailRequired         = "email is required"
	MsgResetDetailsRequired  = "email, otp and new password are required"
	MsgUserNotFound          = "user not found"
	MsgInvalidOTP            = "invalid otp"
	MsgOTPExpired            = "otp expired"
	MsgConcurrentUpdate      = "record was modified concurrently, please retry"
)

// UserStore is the persistence contract the Service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
}

// MailRecorder observes outgoing mail. Implemented by metrics.Collector.
type MailRecorder interface {
	RecordMail(kind string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordMail(string, error) {}

// Deps are the collaborators of a Service.
type Deps struct {
	Users       UserStore
	Hasher      PasswordHasher
	Tokens      *TokenIssuer
	Mailer      mailer.Sender
	SenderEmail string
	Logger      *slog.Logger
	Mail        MailRecorder
	Now         func() time.Time
}

// Service runs the registration, login and OTP flows. Every error it returns
// carries one of the Code* codes.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens *TokenIssuer
	mailer mailer.Sender
	from   string
	logger *slog.Logger
	mail   MailRecorder
	now    func() time.Time
}

// NewService validates deps and creates a Service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("user store is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("token issuer is required")
	case deps.Mailer == nil:
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("mailer is required")
	case deps.SenderEmail == "":
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("sender email is required")
	}
	s := &Service{
		users:  deps.Users,
		hasher: deps.Hasher,
		tokens: deps.Tokens,
		mailer: deps.Mailer,
		from:   deps.SenderEmail,
		logger: deps.Logger,
		mail:   deps.Mail,
		now:    deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.mail == nil {
		s.mail = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Session is the outcome of a successful registration or login.
type Session struct {
	UserID string
	Token  string
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) Validate() error {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return validationError(MsgMissingDetails)
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return validationError(MsgInvalidEmailFormat)
	}
	return nil
}

// Register creates an account and logs it in. When only the welcome email
// fails, the session is still returned alongside the error: the account exists
// and is not rolled back.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, conflictError(MsgUserExists)
	case !errors.Is(err, store.ErrNotFound):
		return nil, dependencyError(DependencyStore, "find user by email", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictError(MsgUserExists)
		}
		return nil, dependencyError(DependencyStore, "create user", err)
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", session.UserID)

	if err := s.send(ctx, mailer.KindWelcome, mailer.Welcome(s.from, user.Email)); err != nil {
		return session, err
	}
	return session, nil
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	if in.Email == "" || in.Password == "" {
		return validationError(MsgLoginRequired)
	}
	return nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, authError(MsgInvalidEmail)
		}
		return nil, dependencyError(DependencyStore, "find user by email", err)
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, dependencyError(DependencyHasher, "verify password", err)
	}
	if !ok {
		return nil, authError(MsgInvalidPassword)
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", session.UserID)
	return session, nil
}

// SendVerifyOTP issues a 24h account verification code to the user's email.
// The code is persisted before the email is sent; it stays valid even if
// delivery fails.
func (s *Service) SendVerifyOTP(ctx context.Context, userID string) error {
	if userID == "" {
		return validationError(MsgVerifyDetailsRequired)
	}
	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAccountVerified {
		return authError(MsgAlreadyVerified)
	}

	code, err := GenerateOTP()
	if err != nil {
		return dependencyError(DependencyRandom, "generate otp", err)
	}
	user.VerifyOTP = code
	user.VerifyOTPExpiresAt = s.now().Add(VerifyOTPTTL).UnixMilli()
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "verification otp issued", "user_id", userID)

	return s.send(ctx, mailer.KindVerifyOTP, mailer.VerifyOTP(s.from, user.Email, code))
}

// VerifyEmailInput identifies the account and the submitted code.
type VerifyEmailInput struct {
	UserID string `json:"-"`
	OTP    string `json:"otp"`
}

func (in VerifyEmailInput) Validate() error {
	if in.UserID == "" || in.OTP == "" {
		return validationError(MsgVerifyDetailsRequired)
	}
	return nil
}

// VerifyEmail consumes the verification code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, in VerifyEmailInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	user, err := s.findByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if err := checkOTP(user.VerifyOTP, user.VerifyOTPExpiresAt, in.OTP, s.now()); err != nil {
		return err
	}

	user.IsAccountVerified = true
	user.ClearVerifyOTP()
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account verified", "user_id", in.UserID)
	return nil
}

// SendResetOTP issues a 15 minute password reset code to email.
func (s *Service) SendResetOTP(ctx context.Context, email string) error {
	if email == "" {
		return validationError(MsgEmailRequired)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(MsgUserNotFound)
		}
		return dependencyError(DependencyStore, "find user by email", err)
	}

	code, err := GenerateOTP()
	if err != nil {
		return dependencyError(DependencyRandom, "generate otp", err)
	}
	user.ResetOTP = code
	user.ResetOTPExpiresAt = s.now().Add(ResetOTPTTL).UnixMilli()
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "reset otp issued", "user_id", user.ID.Hex())

	return s.send(ctx, mailer.KindResetOTP, mailer.ResetOTP(s.from, user.Email, code))
}

// ResetPasswordInput is the body of a password reset request.
type ResetPasswordInput struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (in ResetPasswordInput) Validate() error {
	if in.Email == "" || in.OTP == "" || in.NewPassword == "" {
		return validationError(MsgResetDetailsRequired)
	}
	return nil
}

// ResetPassword consumes the reset code and replaces the password hash.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(MsgUserNotFound)
		}
		return dependencyError(DependencyStore, "find user by email", err)
	}
	if err := checkOTP(user.ResetOTP, user.ResetOTPExpiresAt, in.OTP, s.now()); err != nil {
		return err
	}

	hash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ClearResetOTP()
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.Hex())
	return nil
}

// UserData returns the account of an authenticated user.
func (s *Service) UserData(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, validationError(MsgVerifyDetailsRequired)
	}
	return s.findByID(ctx, userID)
}

func (s *Service) findByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(MsgUserNotFound)
		}
		return nil, dependencyError(DependencyStore, "find user by id", err)
	}
	return user, nil
}

func (s *Service) save(ctx context.Context, user *models.User) error {
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, store.ErrStale) {
			return conflictError(MsgConcurrentUpdate)
		}
		return dependencyError(DependencyStore, "save user", err)
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return "", validationError(MsgPasswordTooLong)
		}
		return "", dependencyError(DependencyHasher, "hash password", err)
	}
	return hash, nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	userID := user.ID.Hex()
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, dependencyError(DependencyToken, "issue token", err)
	}
	return &Session{UserID: userID, Token: token}, nil
}

func (s *Service) send(ctx context.Context, kind mailer.Kind, msg mailer.Message) error {
	err := s.mailer.Send(ctx, msg)
	s.mail.RecordMail(string(kind), err)
	if err != nil {
		return dependencyError(DependencyMailer, "send "+string(kind)+" email", err)
	}
	return nil
}
