// Package rest exposes the authkeeper account and session flows over
// HTTP/JSON using gorilla/mux.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/gorilla/mux"
)

// authFlow is the slice of AuthService the handlers need.
type authFlow interface {
	Register(ctx context.Context, email string, password string) (*models.User, error)
	Login(ctx context.Context, email string, password string) (*services.LoginResult, error)
	VerifyTwoFa(ctx context.Context, email string, code string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshValue string) (*services.SessionPair, error)
	Logout(ctx context.Context, refreshValue string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string, code string, newPassword string) error
	SendVerificationEmail(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, userID string, code string) error
	SetTwoFa(ctx context.Context, userID string, enabled bool) error
}

// sessionVerifier is the slice of TokenService the auth middleware needs.
type sessionVerifier interface {
	VerifySession(ctx context.Context, value string, purpose models.TokenPurpose, requireStoredRecord bool) (string, error)
}

type Server struct {
	address string
	logger  logging.Logger
	auth    authFlow
	tokens  sessionVerifier
}

func NewServer(a string, l logging.Logger, auth *services.AuthService, tokens *services.TokenService) *Server {
	return &Server{
		address: a,
		logger:  l.With("module", "rest_server"),
		auth:    auth,
		tokens:  tokens,
	}
}

// Router builds the route table. Account endpoints under /v1/account require
// a valid access token; the /v1/auth endpoints are open.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	auth := r.PathPrefix("/v1/auth").Subrouter()
	auth.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/two-fa/verify", s.handleVerifyTwoFa).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)

	account := r.PathPrefix("/v1/account").Subrouter()
	account.Use(s.accessTokenMiddleware)
	account.HandleFunc("/send-verification-email", s.handleSendVerificationEmail).Methods(http.MethodPost)
	account.HandleFunc("/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	account.HandleFunc("/two-fa", s.handleSetTwoFa).Methods(http.MethodPost)

	return r
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "Shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
