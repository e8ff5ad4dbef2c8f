// Package services contains server-side business logic. This file implements
// TokenService, the bridge between the signer, the code generator, and the
// credential store: it mints session pairs and one-time codes, verifies
// presented credentials, and enforces the issuance rate limit.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/otp"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// SessionToken is one half of a minted session pair.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// SessionPair bundles a short-lived access token and a long-lived refresh
// token. The access token is stateless; the refresh token is backed by a
// store record.
type SessionPair struct {
	Access  SessionToken
	Refresh SessionToken
}

// TokenService manages the credential lifecycle:
// - IssueSessionPair / RotateSession / RevokeSession for session tokens
// - IssueOneTimeCode / VerifyOneTimeCode for one-time codes
// - VerifySession for presented session credentials
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	otpValidityDuration          time.Duration
	limits                       RateLimits

	now func() time.Time
}

// NewTokenService constructs a TokenService using repositories and server
// config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		otpValidityDuration:          cfg.OtpValidityDuration,
		limits: RateLimits{
			MaxRequests:      cfg.OtpMaxRequests,
			RequestsWindow:   cfg.OtpRequestsWindow,
			BaseCooldown:     cfg.OtpBaseCooldown,
			ExtendedCooldown: cfg.OtpExtendedCooldown,
		},
		now: time.Now,
	}
}

// IssueSessionPair mints an access credential (never persisted) and a
// refresh credential (persisted with purpose=refresh). If the refresh
// record cannot be stored no pair is returned.
func (s *TokenService) IssueSessionPair(ctx context.Context, userID string) (*SessionPair, error) {
	return s.issueSessionPair(ctx, userID, s.db)
}

func (s *TokenService) issueSessionPair(ctx context.Context, userID string, db dbx.DBTX) (*SessionPair, error) {
	now := s.now()
	accessExpires := now.Add(s.accessTokenValidityDuration)
	refreshExpires := now.Add(s.refreshTokenValidityDuration)

	access, err := auth.GenerateToken(userID, models.PurposeAccess, s.jwtSecret, accessExpires)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateToken(userID, models.PurposeRefresh, s.jwtSecret, refreshExpires)
	if err != nil {
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Tokens(db)
	if err := repo.CreateSession(ctx, userID, refresh, models.PurposeRefresh, refreshExpires); err != nil {
		return nil, common.ErrorInternal
	}

	return &SessionPair{
		Access:  SessionToken{Value: access, ExpiresAt: accessExpires},
		Refresh: SessionToken{Value: refresh, ExpiresAt: refreshExpires},
	}, nil
}

// IssueOneTimeCode consults the rate limiter and, on approval, stores a
// salted hash of a fresh code for (userID, purpose), replacing any prior
// active record for the pair. The plaintext code is returned to the caller
// for delivery and never persisted.
//
// The read-evaluate-mutate sequence runs in a single transaction with the
// existing record row locked, so concurrent requests for the same pair are
// serialized by the store.
func (s *TokenService) IssueOneTimeCode(ctx context.Context, userID string, purpose models.TokenPurpose) (string, error) {
	if !models.IsCodePurpose(purpose) {
		return "", common.ErrorInvalidInput
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return "", common.ErrorInternal
	}
	hash, err := cryptox.HashCode(code)
	if err != nil {
		return "", common.ErrorInternal
	}

	var denied bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)
		now := s.now()

		rec, err := repo.FindCodeForUpdate(ctx, userID, purpose)
		if errors.Is(err, common.ErrorNotFound) {
			return repo.CreateCode(ctx, &models.Token{
				UserID:          userID,
				Value:           hash,
				Purpose:         purpose,
				Kind:            models.KindOneTimeCode,
				ExpiresAt:       now.Add(s.otpValidityDuration),
				RequestCount:    1,
				CooldownMinutes: int(s.limits.BaseCooldown.Minutes()),
			})
		}
		if err != nil {
			return fmt.Errorf("error searching code record: %w", err)
		}

		d := evaluateRateLimit(rec, now, s.limits)
		if !d.Allowed {
			denied = true
			if d.EscalateCooldown {
				// the escalation must commit even though issuance is denied
				return repo.SetCodeCooldown(ctx, rec.ID, d.CooldownMinutes)
			}
			return nil
		}

		return repo.ReplaceCode(ctx, rec.ID, hash, now.Add(s.otpValidityDuration),
			d.RequestCount, d.CooldownMinutes, d.WindowRestart)
	})
	if err != nil {
		return "", common.ErrorInternal
	}
	if denied {
		return "", common.ErrRateLimited
	}

	return code, nil
}

// VerifySession validates a presented session credential: signature first,
// then the expiry encoded in the payload, then (for refresh purpose, or
// when requireStoredRecord is set) the backing store record, which must
// exist, be unrevoked, and be unexpired. It returns the subject's user id.
func (s *TokenService) VerifySession(ctx context.Context, value string, purpose models.TokenPurpose, requireStoredRecord bool) (string, error) {
	if !models.IsSessionPurpose(purpose) {
		return "", common.ErrorInvalidInput
	}

	claims, err := auth.ParseToken(value, s.jwtSecret)
	if err != nil {
		return "", err
	}
	if claims.Purpose != string(purpose) {
		return "", common.ErrInvalidToken
	}

	if purpose == models.PurposeRefresh || requireStoredRecord {
		repo := s.repomanager.Tokens(s.db)
		rec, err := repo.FindSession(ctx, value, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return "", common.ErrorNotFound
			}
			return "", common.ErrorInternal
		}
		if rec.Revoked {
			return "", common.ErrInvalidToken
		}
		if !rec.ExpiresAt.After(s.now()) {
			// lazily drop the dead record
			_ = repo.DeleteByID(ctx, rec.ID)
			return "", common.ErrRefreshTokenExpired
		}
	}

	return claims.UserID, nil
}

// VerifyOneTimeCode checks a presented code for (userID, purpose) against
// the stored hash and consumes the record on success. A wrong code leaves
// the record in place; only successful consumption deletes it. The compare
// and delete run against a locked row in one transaction.
func (s *TokenService) VerifyOneTimeCode(ctx context.Context, userID string, purpose models.TokenPurpose, code string) error {
	if !models.IsCodePurpose(purpose) {
		return common.ErrorInvalidInput
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)

		rec, err := repo.FindCodeForUpdate(ctx, userID, purpose)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return common.ErrorInternal
		}

		if !rec.ExpiresAt.After(s.now()) {
			return common.ErrTokenExpired
		}

		if !cryptox.CheckCode(rec.Value, code) {
			return common.ErrInvalidCode
		}

		return repo.DeleteByID(ctx, rec.ID)
	})
}

// RotateSession validates a refresh credential against its store record,
// deletes the record, and mints a fresh pair, all in one transaction.
// Expired refresh records yield common.ErrRefreshTokenExpired.
func (s *TokenService) RotateSession(ctx context.Context, refreshValue string) (*SessionPair, error) {
	userID, err := s.VerifySession(ctx, refreshValue, models.PurposeRefresh, true)
	if err != nil {
		return nil, err
	}

	var pair *SessionPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)
		if err := repo.DeleteSession(ctx, refreshValue, models.PurposeRefresh); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.issueSessionPair(ctx, userID, tx)
		return genErr
	}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// RevokeSession deletes the store record matching a refresh credential.
// Returns common.ErrorNotFound when no record matches; idempotent callers
// should treat that as success.
func (s *TokenService) RevokeSession(ctx context.Context, refreshValue string) error {
	repo := s.repomanager.Tokens(s.db)
	err := repo.DeleteSession(ctx, refreshValue, models.PurposeRefresh)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}
