package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"mailauth/internal/api"
	"mailauth/internal/auth"
	"mailauth/internal/config"
	"mailauth/internal/database"
	"mailauth/internal/logging"
	"mailauth/internal/mail"
	"mailauth/internal/metrics"
	"mailauth/internal/store"
)

// Store backends accepted by --store.
const (
	storeMongo  = "mongo"
	storeMemory = "memory"
)

type serveOptions struct {
	addr  string
	store string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default :$PORT)")
	cmd.Flags().StringVar(&opts.store, "store", storeMongo, "user store backend: mongo or memory")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	users, closeStore, err := openStore(ctx, opts.store, cfg)
	if err != nil {
		logging.LogError(logger, "initialization error", err)
		return err
	}
	defer closeStore()

	if cfg.SMTPServer == "" {
		logger.Warn("SMTP_SERVER is not set, outgoing mail will fail")
	}

	reg := metrics.NewRegistry()
	collector := metrics.NewCollector(reg)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), auth.DefaultTokenTTL)

	svc, err := auth.NewService(auth.Deps{
		Users:  users,
		Hasher: auth.NewBcryptHasher(auth.DefaultBcryptCost),
		Tokens: tokens,
		Mailer: mail.NewSMTPSender(mail.SMTPConfig{
			Server:   cfg.SMTPServer,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}),
		SenderEmail: cfg.SenderEmail,
		Logger:      logger,
		Mail:        collector,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(svc, api.CookieConfig{Production: cfg.Production, MaxAge: tokens.TTL()}, collector, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		Tokens:      tokens,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metrics.Handler(reg),
		AccessLog:   os.Stdout,
		Logger:      logger,
	})

	addr := opts.addr
	if addr == "" {
		addr = cfg.Addr()
	}
	srv := &http.Server{
		Handler:      router,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", "addr", addr, "store", opts.store, "production", cfg.Production)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

// openStore builds the user store selected by kind and returns a function
// releasing its resources.
func openStore(ctx context.Context, kind string, cfg config.Config) (auth.UserStore, func(), error) {
	switch kind {
	case storeMemory:
		slog.Warn("using in-memory user store, data is lost on restart")
		return store.NewMemoryUserStore(), func() {}, nil
	case storeMongo:
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := database.ConnectMongoDB(initCtx, cfg.MongoURI, cfg.MongoTimeout)
		if err != nil {
			return nil, nil, err
		}
		col := database.GetUserCollection(client, cfg.MongoDB)
		if err := database.EnsureIndexes(initCtx, col); err != nil {
			disconnect(client)
			return nil, nil, err
		}
		return store.NewMongoUserStore(col, cfg.MongoTimeout), func() { disconnect(client) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q: expected %s or %s", kind, storeMongo, storeMemory)
	}
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		slog.Error("error disconnecting from MongoDB", "error", err)
	}
}
