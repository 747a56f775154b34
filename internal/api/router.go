package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// RouterConfig holds what the router needs besides the Handler.
type RouterConfig struct {
	Tokens      TokenVerifier
	CORSOrigins []string
	Metrics     http.Handler
	AccessLog   io.Writer
	Logger      *slog.Logger
}

// NewRouter wires every route, the session middleware, CORS and access logs.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	accessLog := cfg.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}
	session := RequireSession(cfg.Tokens, logger)
	protected := func(fn http.HandlerFunc) http.Handler { return session(fn) }

	router := mux.NewRouter()

	authRouter := router.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	authRouter.Handle("/send-verify-otp", protected(h.SendVerifyOTP)).Methods(http.MethodPost)
	authRouter.Handle("/verify-account", protected(h.VerifyAccount)).Methods(http.MethodPost)
	authRouter.Handle("/is-auth", protected(h.IsAuthenticated)).Methods(http.MethodGet)
	authRouter.HandleFunc("/send-reset-otp", h.SendResetOTP).Methods(http.MethodPost)
	authRouter.HandleFunc("/reset-password", h.ResetPassword).Methods(http.MethodPost)

	router.Handle("/api/user/data", protected(h.UserData)).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, "")
	}).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
		handlers.AllowCredentials(),
	)

	return handlers.CombinedLoggingHandler(accessLog, RequestLogger(logger)(cors(router)))
}
