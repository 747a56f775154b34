package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mailauth/internal/api"
	"mailauth/internal/auth"
	"mailauth/internal/mail"
	"mailauth/internal/store"
)

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

type inbox struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (b *inbox) Send(_ context.Context, msg mail.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *inbox) lastOTP(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.msgs)
	m := otpPattern.FindStringSubmatch(b.msgs[len(b.msgs)-1].Body)
	require.Len(t, m, 2)
	return m[1]
}

type requestCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *requestCounter) RecordRequest(operation, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[operation+"/"+outcome]++
}

type server struct {
	handler  http.Handler
	users    *store.MemoryUserStore
	inbox    *inbox
	requests *requestCounter
}

func newServer(t *testing.T, production bool) *server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &server{
		users:    store.NewMemoryUserStore(),
		inbox:    &inbox{},
		requests: &requestCounter{counts: map[string]int{}},
	}
	tokens := auth.NewTokenIssuer([]byte("secret"), 0)
	svc, err := auth.NewService(auth.Deps{
		Users:       s.users,
		Hasher:      auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:      tokens,
		Mailer:      s.inbox,
		SenderEmail: "noreply@example.com",
		Logger:      logger,
	})
	require.NoError(t, err)

	h := api.NewHandler(svc, api.CookieConfig{Production: production, MaxAge: tokens.TTL()}, s.requests, logger)
	s.handler = api.NewRouter(h, api.RouterConfig{
		Tokens:      tokens,
		CORSOrigins: []string{"http://localhost:5173"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
		AccessLog: io.Discard,
		Logger:    logger,
	})
	return s
}

func (s *server) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func envelope(t *testing.T, resp *http.Response) api.Envelope {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env api.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func tokenCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == api.TokenCookieName {
			return c
		}
	}
	return nil
}

func register(t *testing.T, s *server, email string) *http.Cookie {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Ada", "email": email, "password": "s3cret"}, nil)
	cookie := tokenCookie(resp)
	env := envelope(t, resp)
	require.True(t, env.Success, env.Message)
	require.NotNil(t, cookie)
	return &http.Cookie{Name: cookie.Name, Value: cookie.Value}
}

func TestRegisterAndSession(t *testing.T) {
	s := newServer(t, false)
	cookie := register(t, s, "ada@example.com")

	env := envelope(t, s.do(t, http.MethodGet, "/api/auth/is-auth", nil, cookie))
	assert.True(t, env.Success)

	env = envelope(t, s.do(t, http.MethodGet, "/api/user/data", nil, cookie))
	assert.True(t, env.Success)
	require.NotNil(t, env.UserData)
	assert.Equal(t, "Ada", env.UserData.Name)
	assert.False(t, env.UserData.IsAccountVerified)

	assert.Equal(t, 1, s.requests.counts["register/ok"])
}

func TestRegister_Duplicate(t *testing.T) {
	s := newServer(t, false)
	register(t, s, "ada@example.com")

	resp := s.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Other", "email": "ada@example.com", "password": "x"}, nil)
	assert.Nil(t, tokenCookie(resp))
	env := envelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgUserExists, env.Message)
	assert.Equal(t, 1, s.users.Len())
	assert.Equal(t, 1, s.requests.counts["register/CONFLICT"])
}

func TestRegister_MailFailureStillSetsCookie(t *testing.T) {
	s := newServer(t, false)
	s.inbox.err = errors.New("smtp down")

	resp := s.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Ada", "email": "ada@example.com", "password": "pw"}, nil)
	assert.NotNil(t, tokenCookie(resp))
	env := envelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, auth.GenericMessage, env.Message)
	assert.Equal(t, 1, s.requests.counts["register/DEPENDENCY"])
}

func TestLogin(t *testing.T) {
	s := newServer(t, false)
	register(t, s, "ada@example.com")

	resp := s.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@example.com", "password": "s3cret"}, nil)
	cookie := tokenCookie(resp)
	assert.True(t, envelope(t, resp).Success)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.False(t, cookie.Secure)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	resp = s.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@example.com", "password": "wrong"}, nil)
	assert.Nil(t, tokenCookie(resp))
	env := envelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgInvalidPassword, env.Message)
}

func TestLogin_ProductionCookie(t *testing.T) {
	s := newServer(t, true)
	register(t, s, "ada@example.com")

	resp := s.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@example.com", "password": "s3cret"}, nil)
	cookie := tokenCookie(resp)
	assert.True(t, envelope(t, resp).Success)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}

func TestLogout_ClearsCookie(t *testing.T) {
	for _, production := range []bool{false, true} {
		s := newServer(t, production)

		resp := s.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
		cookie := tokenCookie(resp)
		env := envelope(t, resp)
		assert.True(t, env.Success)
		assert.Equal(t, api.MsgLoggedOut, env.Message)

		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Equal(t, -1, cookie.MaxAge)
		assert.Equal(t, "/", cookie.Path)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, production, cookie.Secure)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newServer(t, false)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/auth/send-verify-otp"},
		{http.MethodPost, "/api/auth/verify-account"},
		{http.MethodGet, "/api/auth/is-auth"},
		{http.MethodGet, "/api/user/data"},
	} {
		env := envelope(t, s.do(t, route.method, route.path, nil, nil))
		assert.False(t, env.Success, route.path)
		assert.Equal(t, api.MsgNotAuthorized, env.Message, route.path)

		bad := &http.Cookie{Name: api.TokenCookieName, Value: "not-a-token"}
		env = envelope(t, s.do(t, route.method, route.path, nil, bad))
		assert.Equal(t, api.MsgNotAuthorized, env.Message, route.path)
	}
}

func TestVerifyAccountFlow(t *testing.T) {
	s := newServer(t, false)
	cookie := register(t, s, "ada@example.com")

	env := envelope(t, s.do(t, http.MethodPost, "/api/auth/send-verify-otp", nil, cookie))
	require.True(t, env.Success, env.Message)
	assert.Equal(t, api.MsgVerifyOTPSent, env.Message)
	code := s.inbox.lastOTP(t)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": "12"}, cookie))
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgInvalidOTP, env.Message)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": code}, cookie))
	assert.True(t, env.Success, env.Message)
	assert.Equal(t, api.MsgEmailVerified, env.Message)

	env = envelope(t, s.do(t, http.MethodGet, "/api/user/data", nil, cookie))
	require.NotNil(t, env.UserData)
	assert.True(t, env.UserData.IsAccountVerified)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/send-verify-otp", nil, cookie))
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgAlreadyVerified, env.Message)
}

func TestResetPasswordFlow(t *testing.T) {
	s := newServer(t, false)
	register(t, s, "ada@example.com")

	env := envelope(t, s.do(t, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "ada@example.com"}, nil))
	require.True(t, env.Success, env.Message)
	assert.Equal(t, api.MsgResetOTPSent, env.Message)
	code := s.inbox.lastOTP(t)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "ada@example.com", "otp": code, "newPassword": "n3w",
	}, nil))
	require.True(t, env.Success, env.Message)
	assert.Equal(t, api.MsgPasswordReset, env.Message)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@example.com", "password": "n3w"}, nil))
	assert.True(t, env.Success)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "nobody@example.com"}, nil))
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgUserNotFound, env.Message)
}

func TestMalformedBody(t *testing.T) {
	s := newServer(t, false)

	env := envelope(t, s.do(t, http.MethodPost, "/api/auth/login", "{not json", nil))
	assert.False(t, env.Success)
	assert.Equal(t, api.MsgInvalidBody, env.Message)

	env = envelope(t, s.do(t, http.MethodPost, "/api/auth/register", nil, nil))
	assert.False(t, env.Success)
	assert.Equal(t, auth.MsgMissingDetails, env.Message)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, false)

	assert.True(t, envelope(t, s.do(t, http.MethodGet, "/healthz", nil, nil)).Success)

	resp := s.do(t, http.MethodGet, "/metrics", nil, nil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "metrics", string(body))
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
