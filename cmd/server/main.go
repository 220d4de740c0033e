package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/opsdeck/opsdeck/internal/api"
	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/config"
	"github.com/opsdeck/opsdeck/internal/email"
	"github.com/opsdeck/opsdeck/internal/event"
	"github.com/opsdeck/opsdeck/internal/store"
	"github.com/opsdeck/opsdeck/internal/token"
	"github.com/opsdeck/opsdeck/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	codec, err := token.NewCodec(cfg.TokenSecret)
	if err != nil {
		slog.Error("failed to initialize token codec", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	directory, roles, closeStore, err := initDirectories(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize user store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	revocations := initRevocationStore(cfg)
	sender := initSender(cfg)

	authService := auth.NewService(auth.NewLocalVerifier(directory), codec, revocations, event.LogHub{})
	registration := auth.NewRegistrationService(directory, roles, codec, event.LogTelemetry{}, cfg.BcryptCost)
	resetURL := strings.TrimRight(cfg.AdminURL, "/") + "/auth/reset-password"
	passwordReset := auth.NewPasswordResetService(directory, codec, sender, resetURL, cfg.BcryptCost)

	router := api.NewRouter(api.RouterDeps{
		Auth:          authService,
		Registration:  registration,
		PasswordReset: passwordReset,
		Directory:     directory,
		SecureCookies: cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting opsdeck server", "port", cfg.Port, "version", cfg.Version, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// initDirectories picks the postgres-backed directories when DATABASE_URL is
// set, and the in-memory ones otherwise.
func initDirectories(ctx context.Context, cfg *config.Config) (user.Directory, user.RoleDirectory, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set; using in-memory user store (development only)")
		superAdmin := &user.Role{ID: uuid.New(), Name: "Super Admin", IsSuperAdmin: true}
		return user.NewMemoryDirectory(superAdmin), user.NewMemoryRoleDirectory(superAdmin), func() {}, nil
	}

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	return user.NewPostgresDirectory(db.Pool()), user.NewPostgresRoleDirectory(db.Pool()), db.Close, nil
}

// initRevocationStore picks the redis-backed revocation store when
// REDIS_ADDR is set. The in-memory fallback is per-process: fine for a
// single instance, wrong for a fleet.
func initRevocationStore(cfg *config.Config) token.RevocationStore {
	if cfg.RedisAddr == "" {
		return token.NewMemoryRevocationStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return token.NewRedisRevocationStore(client)
}

func initSender(cfg *config.Config) email.Sender {
	if cfg.SMTPHost == "" {
		return email.LogSender{}
	}

	sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPUseTLS)
	if err != nil {
		slog.Warn("smtp misconfigured; falling back to log sender", "error", err)
		return email.LogSender{}
	}
	return sender
}
