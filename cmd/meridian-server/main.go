// Package main is the entry point for the Meridian Identity server,
// the authentication and user-account backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/config"
	"github.com/prn-tf/meridian-identity/internal/handler"
	"github.com/prn-tf/meridian-identity/internal/mail"
	"github.com/prn-tf/meridian-identity/internal/nonce"
	"github.com/prn-tf/meridian-identity/internal/repository"
	"github.com/prn-tf/meridian-identity/internal/repository/postgres"
	"github.com/prn-tf/meridian-identity/internal/repository/sqlite"
	"github.com/prn-tf/meridian-identity/internal/service"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting meridian identity server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	users, dbHealth, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbHealth.Close()

	// One-time marker store
	markers, err := openMarkerStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer markers.Close()

	// Token issuer
	privateKey, publicKey, err := token.ParseKeyPair(cfg.Token.PrivateKey, cfg.Token.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse token key pair: %w", err)
	}
	tokens, err := token.NewIssuer(token.Config{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	// Mail
	var mailer mail.Mailer = mail.NopMailer{}
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			Sender:   cfg.Mail.Sender,
		})
	} else {
		logger.Warn().Msg("mail delivery disabled, confirmation emails will not be sent")
	}
	confirmations, err := mail.NewConfirmationSender(mailer, cfg.Mail.ClientOrigin)
	if err != nil {
		return fmt.Errorf("failed to create confirmation sender: %w", err)
	}

	// Services
	authService := service.NewAuthService(users, tokens, markers, confirmations, logger)
	userService := service.NewUserService(users, logger)

	// HTTP server
	router := handler.NewRouter(handler.RouterConfig{
		AuthService: authService,
		UserService: userService,
		Logger:      logger,
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxAge:         cfg.CORS.MaxAge,
		},
		MaxBodySize:    cfg.Server.MaxBodySize,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// openRepository connects to the configured database driver and runs
// pending migrations.
func openRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			CacheSize:       cfg.Database.CacheSize,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run sqlite migrations: %w", err)
		}
		return sqlite.NewUserRepository(db), db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run postgres migrations: %w", err)
		}
		return postgres.NewUserRepository(db), db, nil
	}

	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// openMarkerStore connects to Redis when enabled, otherwise falls back
// to the in-memory store.
func openMarkerStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (nonce.Store, error) {
	if !cfg.Redis.Enabled {
		logger.Warn().Msg("redis disabled, using in-memory marker store")
		return nonce.NewMemoryStore(), nil
	}

	store, err := nonce.NewRedisStore(ctx, nonce.RedisConfig{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store, nil
}

// newLogger builds the root zerolog logger from config.
func newLogger(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	logger := zerolog.New(out)
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Logger(), nil
}
