// Package httpapi exposes the auth services as a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/logging"
	"github.com/dmitrijs2005/todoauth/internal/server/auth"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	maxBodyBytes      = 1 << 20
)

// Accounts is implemented by services.AccountService.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error)
	Authenticate(ctx context.Context, email, password string) (*services.LoginResult, error)
	Profile(ctx context.Context, accountID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, accountID string, in services.ProfileUpdate) (*models.Profile, error)
	AvatarUploadURL(ctx context.Context, accountID string) (string, string, error)
	ConfirmAvatar(ctx context.Context, accountID, key string) (*models.Profile, error)
}

// Verification is implemented by services.VerificationService.
type Verification interface {
	Consume(ctx context.Context, token string) error
	Reissue(ctx context.Context, email string) (*services.IssueResult, error)
}

// Sessions is implemented by services.SessionService.
type Sessions interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

// Identity is implemented by services.IdentityService.
type Identity interface {
	SignIn(ctx context.Context, providerToken string) (*services.LoginResult, error)
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Services struct {
	Accounts     Accounts
	Verification Verification
	Sessions     Sessions
	Identity     Identity
	DB           Pinger
}

type HTTPServer struct {
	address         string
	prefix          string
	shutdownTimeout time.Duration
	accounts        Accounts
	verification    Verification
	sessions        Sessions
	identity        Identity
	db              Pinger
	logger          logging.Logger
}

func NewHTTPServer(address, prefix string, shutdownTimeout time.Duration, l logging.Logger, svc Services) *HTTPServer {
	return &HTTPServer{
		address:         address,
		prefix:          prefix,
		shutdownTimeout: shutdownTimeout,
		accounts:        svc.Accounts,
		verification:    svc.Verification,
		sessions:        svc.Sessions,
		identity:        svc.Identity,
		db:              svc.DB,
		logger:          l.With("module", "http_server"),
	}
}

// Handler returns the routed API wrapped in the request middleware.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	p := s.prefix

	mux.HandleFunc("POST "+p+"/register/", s.register)
	mux.HandleFunc("POST "+p+"/login/", s.login)
	mux.HandleFunc("POST "+p+"/token/refresh/", s.refreshToken)
	mux.HandleFunc("POST "+p+"/verify-email/", s.verifyEmail)
	mux.HandleFunc("POST "+p+"/resend-verification/", s.resendVerification)
	mux.HandleFunc("POST "+p+"/google-oauth/", s.googleOAuth)

	mux.Handle("GET "+p+"/profile/", s.requireAccount(http.HandlerFunc(s.profile)))
	mux.Handle("PATCH "+p+"/profile/", s.requireAccount(http.HandlerFunc(s.updateProfile)))
	mux.Handle("POST "+p+"/profile/avatar/", s.requireAccount(http.HandlerFunc(s.avatarUpload)))
	mux.Handle("POST "+p+"/profile/avatar/confirm/", s.requireAccount(http.HandlerFunc(s.avatarConfirm)))

	mux.HandleFunc("GET /healthz", s.healthz)

	return s.withRequestLog(s.withRecover(mux))
}

func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// closed once Shutdown has drained in-flight requests
	drained := make(chan struct{})

	go func() {
		defer close(drained)

		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String(), "prefix", s.prefix)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Serve returns as soon as Shutdown closes the listener.
	<-drained

	return nil
}
