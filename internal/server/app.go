// Package server wires the auth services together and runs the HTTP API
// until the process receives a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/config"
	"github.com/dmitrijs2005/todoauth/internal/server/google"
	"github.com/dmitrijs2005/todoauth/internal/server/httpapi"
	"github.com/dmitrijs2005/todoauth/internal/server/notify"
	"github.com/dmitrijs2005/todoauth/internal/server/password"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todoauth/internal/server/services"
	"github.com/dmitrijs2005/todoauth/internal/server/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	manager repomanager.RepositoryManager
	server  *httpapi.HTTPServer
}

// OpenDB opens the PostgreSQL pool through the pgx stdlib driver and checks
// that it answers.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if c.SMTPAddr != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Addr:     c.SMTPAddr,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		})
	}

	var avatars services.AvatarStore
	if c.AvatarsEnabled() {
		avatars = storage.NewAvatarStore(storage.Config{
			Region:       c.S3Region,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
			URLValidity:  c.AvatarURLValidityDuration,
		})
	}

	verifier := google.NewVerifier(ctx, google.Config{
		ClientID:           c.GoogleClientID,
		AcceptAccessTokens: c.GoogleAcceptAccessTokens,
	})

	tokens := auth.NewTokenManager([]byte(c.SecretKey), c.JWTIssuer,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	vs := services.NewVerificationService(db, rm, notifier, c, logger)
	ss := services.NewSessionService(tokens)
	as := services.NewAccountService(db, rm, password.NewHasher(password.DefaultParams), vs, ss, avatars, logger)
	is := services.NewIdentityService(db, rm, verifier, ss, avatars, c, logger)

	srv := httpapi.NewHTTPServer(c.EndpointAddrHTTP, c.APIPrefix, c.ShutdownTimeout, logger, httpapi.Services{
		Accounts:     as,
		Verification: vs,
		Sessions:     ss,
		Identity:     is,
		DB:           db,
	})

	return &App{config: c, logger: logger, db: db, manager: rm, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run applies pending migrations and serves until a signal arrives or the
// server fails.
func (app *App) Run(ctx context.Context) error {
	defer app.db.Close()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.manager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return nil
}
