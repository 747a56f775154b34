package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mailauth/internal/auth"
	"mailauth/internal/logging"
	"mailauth/internal/models"
)

// Success messages.
const (
	MsgLoggedOut     = "Logged Out"
	MsgVerifyOTPSent = "Verification OTP sent on email"
	MsgEmailVerified = "Email verified successfully"
	MsgResetOTPSent  = "OTP sent to your email"
	MsgPasswordReset = "Password has been reset successfully"
)

// OutcomeOK labels successful operations in request metrics.
const OutcomeOK = "ok"

// Service is the auth behaviour the handlers expose.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	SendVerifyOTP(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, in auth.VerifyEmailInput) error
	SendResetOTP(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in auth.ResetPasswordInput) error
	UserData(ctx context.Context, userID string) (*models.User, error)
}

// RequestRecorder counts handled requests by outcome.
type RequestRecorder interface {
	RecordRequest(operation, outcome string)
}

type nopRequestRecorder struct{}

func (nopRequestRecorder) RecordRequest(string, string) {}

// Handler serves the /api routes.
type Handler struct {
	svc     Service
	cookies CookieConfig
	metrics RequestRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler. A nil recorder or logger falls back to a
// no-op recorder and slog.Default.
func NewHandler(svc Service, cookies CookieConfig, metrics RequestRecorder, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = nopRequestRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cookies: cookies, metrics: metrics, logger: logger, now: time.Now}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "register"
	var in auth.RegisterInput
	if !h.decode(w, r, op, &in) {
		return
	}

	session, err := h.svc.Register(r.Context(), in)
	if session != nil {
		http.SetCookie(w, h.cookies.Session(session.Token, h.now()))
	}
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.ok(w, op, "")
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "login"
	var in auth.LoginInput
	if !h.decode(w, r, op, &in) {
		return
	}

	session, err := h.svc.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	http.SetCookie(w, h.cookies.Session(session.Token, h.now()))
	h.ok(w, op, "")
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.cookies.Cleared())
	h.ok(w, "logout", MsgLoggedOut)
}

// SendVerifyOTP handles POST /api/auth/send-verify-otp.
func (h *Handler) SendVerifyOTP(w http.ResponseWriter, r *http.Request) {
	const op = "send_verify_otp"
	userID, _ := UserIDFromContext(r.Context())
	if err := h.svc.SendVerifyOTP(r.Context(), userID); err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.ok(w, op, MsgVerifyOTPSent)
}

// VerifyAccount handles POST /api/auth/verify-account.
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	const op = "verify_account"
	var in auth.VerifyEmailInput
	if !h.decode(w, r, op, &in) {
		return
	}
	in.UserID, _ = UserIDFromContext(r.Context())

	if err := h.svc.VerifyEmail(r.Context(), in); err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.ok(w, op, MsgEmailVerified)
}

// IsAuthenticated handles GET /api/auth/is-auth. Reaching it means the
// session middleware accepted the cookie.
func (h *Handler) IsAuthenticated(w http.ResponseWriter, _ *http.Request) {
	h.ok(w, "is_auth", "")
}

// SendResetOTP handles POST /api/auth/send-reset-otp.
func (h *Handler) SendResetOTP(w http.ResponseWriter, r *http.Request) {
	const op = "send_reset_otp"
	var in struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, op, &in) {
		return
	}

	if err := h.svc.SendResetOTP(r.Context(), in.Email); err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.ok(w, op, MsgResetOTPSent)
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "reset_password"
	var in auth.ResetPasswordInput
	if !h.decode(w, r, op, &in) {
		return
	}

	if err := h.svc.ResetPassword(r.Context(), in); err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.ok(w, op, MsgPasswordReset)
}

// UserData handles GET /api/user/data.
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	const op = "user_data"
	userID, _ := UserIDFromContext(r.Context())
	user, err := h.svc.UserData(r.Context(), userID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	h.metrics.RecordRequest(op, OutcomeOK)
	writeJSON(w, Envelope{
		Success: true,
		UserData: &UserData{
			Name:              user.Name,
			IsAccountVerified: user.IsAccountVerified,
		},
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		h.logger.InfoContext(r.Context(), "malformed request body",
			"operation", op,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		h.metrics.RecordRequest(op, auth.CodeValidation)
		writeFailure(w, MsgInvalidBody)
		return false
	}
	return true
}

func (h *Handler) ok(w http.ResponseWriter, op, message string) {
	h.metrics.RecordRequest(op, OutcomeOK)
	writeOK(w, message)
}

// fail logs err and writes its public message. Client errors are logged at
// info; dependency and unexpected errors at error with their context.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := auth.Code(err)
	attrs := []any{"operation", op, "request_id", RequestIDFromContext(r.Context())}

	switch code {
	case auth.CodeValidation, auth.CodeConflict, auth.CodeAuth, auth.CodeNotFound:
		h.logger.InfoContext(r.Context(), "request rejected", append(attrs, "code", code, "error", err)...)
	default:
		if code == "" {
			code = "INTERNAL"
		}
		logging.LogError(h.logger, "request failed", err, attrs...)
	}

	h.metrics.RecordRequest(op, code)
	writeFailure(w, auth.PublicMessage(err))
}
