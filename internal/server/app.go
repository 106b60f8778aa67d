// Package server assembles the account service: configuration, logging,
// database, migrations, and the auth/verification services. Transports are
// expected to embed an App and call into its services.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ilyakharev/authd/internal/logging"
	"github.com/ilyakharev/authd/internal/server/auth"
	"github.com/ilyakharev/authd/internal/server/config"
	"github.com/ilyakharev/authd/internal/server/mailer"
	"github.com/ilyakharev/authd/internal/server/repositories/repomanager"
	"github.com/ilyakharev/authd/internal/server/services"
)

// App owns the wired-up service graph and the database handle.
type App struct {
	config              *config.Config
	logger              logging.Logger
	db                  *sql.DB
	authService         *services.AuthService
	verificationService *services.VerificationService
}

// NewApp connects to the database, applies migrations, and builds the
// services.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := pingWithRetry(ctx, db); err != nil {
		return nil, fmt.Errorf("db unreachable: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	issuer := auth.NewIssuer(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		[]byte(cfg.SetupTokenSecret),
		cfg.AccessTokenValidityDuration,
		cfg.RefreshTokenValidityDuration,
		cfg.SetupTokenValidityDuration,
	)

	sender := newSender(cfg, logger)

	return &App{
		config:              cfg,
		logger:              logger,
		db:                  db,
		authService:         services.NewAuthService(db, rm, issuer, sender, logger, cfg),
		verificationService: services.NewVerificationService(db, rm, issuer, sender, logger, cfg),
	}, nil
}

// Auth exposes the account-lifecycle operations to the transport layer.
func (app *App) Auth() *services.AuthService {
	return app.authService
}

// Verification exposes the OTP operations to the transport layer.
func (app *App) Verification() *services.VerificationService {
	return app.verificationService
}

// Run blocks until the context is cancelled or a termination signal
// arrives, then closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancel)

	<-ctx.Done()

	app.logger.Info(ctx, "Stopping app...")
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}

func (app *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

// pingWithRetry waits for the database to come up, which covers container
// orchestration starting the server before PostgreSQL accepts connections.
func pingWithRetry(ctx context.Context, db *sql.DB) error {
	backoff := retry.WithMaxDuration(30*time.Second, retry.NewFibonacci(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// newSender picks the outbound-email implementation: SMTP with bounded
// retries when a host is configured, log-only otherwise.
func newSender(cfg *config.Config, logger logging.Logger) mailer.Sender {
	if cfg.SMTPHost == "" {
		return mailer.NewDevSender(logger)
	}
	smtp := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	return mailer.NewRetrySender(smtp, 3, time.Second)
}
