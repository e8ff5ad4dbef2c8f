package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/server/delivery"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// LoginResult is the outcome of a credential check. When the account has
// two-factor login enabled no session pair is returned; the caller must
// present the delivered code via VerifyTwoFa first.
type LoginResult struct {
	User          *models.User
	Pair          *SessionPair
	TwoFaRequired bool
}

// AuthService orchestrates the account flows on top of TokenService:
// registration, login, token refresh, logout, password reset, email
// verification, and two-factor login.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	deliverer   delivery.Deliverer
}

// NewAuthService constructs an AuthService. The deliverer carries one-time
// codes to the user; it receives plaintext codes that are never stored.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, d delivery.Deliverer) *AuthService {
	return &AuthService{db: db, repomanager: m, tokens: tokens, deliverer: d}
}

// Register creates a new account with a hashed password.
func (s *AuthService) Register(ctx context.Context, email string, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, common.ErrorInvalidInput
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// Login verifies the provided credentials. On success it either returns a
// session pair or, for accounts with two-factor login enabled, delivers a
// code and reports TwoFaRequired.
func (s *AuthService) Login(ctx context.Context, email string, password string) (*LoginResult, error) {
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}

	if user.TwoFaEnabled {
		code, err := s.tokens.IssueOneTimeCode(ctx, user.ID, models.PurposeTwoFa)
		if err != nil {
			return nil, err
		}
		if err := s.deliverCode(ctx, user.Email, code, "login"); err != nil {
			return nil, common.ErrorInternal
		}
		return &LoginResult{User: user, TwoFaRequired: true}, nil
	}

	pair, err := s.tokens.IssueSessionPair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// VerifyTwoFa consumes a delivered two-factor code and mints the session
// pair the login withheld.
func (s *AuthService) VerifyTwoFa(ctx context.Context, email string, code string) (*LoginResult, error) {
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.VerifyOneTimeCode(ctx, user.ID, models.PurposeTwoFa, code); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssueSessionPair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// Refresh rotates a refresh credential and returns a fresh session pair.
func (s *AuthService) Refresh(ctx context.Context, refreshValue string) (*SessionPair, error) {
	return s.tokens.RotateSession(ctx, refreshValue)
}

// Logout revokes the session backing the given refresh credential. A
// missing record is treated as success: the session is gone either way.
func (s *AuthService) Logout(ctx context.Context, refreshValue string) error {
	err := s.tokens.RevokeSession(ctx, refreshValue)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	return err
}

// ForgotPassword issues a password reset code and delivers it to the
// account's email. An unknown email is reported as success to avoid
// confirming account existence.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.ErrorInternal
	}

	code, err := s.tokens.IssueOneTimeCode(ctx, user.ID, models.PurposeResetPassword)
	if err != nil {
		return err
	}
	if err := s.deliverCode(ctx, user.Email, code, "password reset"); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// ResetPassword consumes a password reset code and stores the new password.
func (s *AuthService) ResetPassword(ctx context.Context, email string, code string, newPassword string) error {
	if newPassword == "" {
		return common.ErrorInvalidInput
	}

	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.tokens.VerifyOneTimeCode(ctx, user.ID, models.PurposeResetPassword, code); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, user.ID, hash); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// SendVerificationEmail issues an email verification code for the user and
// delivers it.
func (s *AuthService) SendVerificationEmail(ctx context.Context, userID string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	if user.EmailVerified {
		return common.ErrorInvalidInput
	}

	code, err := s.tokens.IssueOneTimeCode(ctx, user.ID, models.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	if err := s.deliverCode(ctx, user.Email, code, "email verification"); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// VerifyEmail consumes an email verification code and marks the account's
// email confirmed.
func (s *AuthService) VerifyEmail(ctx context.Context, userID string, code string) error {
	if err := s.tokens.VerifyOneTimeCode(ctx, userID, models.PurposeVerifyEmail, code); err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).MarkEmailVerified(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// SetTwoFa toggles two-factor login for the account.
func (s *AuthService) SetTwoFa(ctx context.Context, userID string, enabled bool) error {
	err := s.repomanager.Users(s.db).SetTwoFaEnabled(ctx, userID, enabled)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

// --- helpers below ---

func (s *AuthService) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *AuthService) deliverCode(ctx context.Context, destination string, code string, action string) error {
	ttl := int(s.tokens.otpValidityDuration.Minutes())
	msg := fmt.Sprintf("Your %s code is %s. It expires in %d minutes. If you did not request it, ignore this message.", action, code, ttl)
	return s.deliverer.Deliver(ctx, destination, msg)
}
