// Package tokens declares the credential store contract: persistence for
// session token records and one-time-code records.
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines storage operations over token records.
//
// One-time-code operations are designed to run inside a transaction: a
// caller locks the active record for a (user, purpose) pair with
// FindCodeForUpdate and then applies ReplaceCode / SetCodeCooldown /
// DeleteByID against the locked row, so two concurrent issuance requests
// can never act on the same stale read.
type Repository interface {
	// CreateSession stores a new session token record. Only refresh-purpose
	// session credentials are ever persisted.
	CreateSession(ctx context.Context, userID string, value string, purpose models.TokenPurpose, expiresAt time.Time) error

	// FindSession looks up a session record by its credential string and
	// purpose. Returns common.ErrorNotFound when absent.
	FindSession(ctx context.Context, value string, purpose models.TokenPurpose) (*models.Token, error)

	// DeleteSession removes a session record by its credential string and
	// purpose. Returns common.ErrorNotFound when no record matched.
	DeleteSession(ctx context.Context, value string, purpose models.TokenPurpose) error

	// FindCodeForUpdate returns the active one-time-code record for
	// (userID, purpose), locking the row for the duration of the enclosing
	// transaction. Returns common.ErrorNotFound when absent.
	FindCodeForUpdate(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.Token, error)

	// CreateCode inserts a fresh one-time-code record. The Value must
	// already be hashed by the caller.
	CreateCode(ctx context.Context, token *models.Token) error

	// ReplaceCode overwrites the value hash, expiry, and rate-limit counters
	// of an existing one-time-code record, refreshing updated_at. When
	// resetWindow is true the rate-limit window restarts: created_at is
	// refreshed as well.
	ReplaceCode(ctx context.Context, id string, valueHash string, expiresAt time.Time, requestCount int, cooldownMinutes int, resetWindow bool) error

	// SetCodeCooldown updates only the cooldown of an existing record,
	// refreshing updated_at. Used for escalation bookkeeping on denial.
	SetCodeCooldown(ctx context.Context, id string, cooldownMinutes int) error

	// DeleteByID removes a token record by id. Returns common.ErrorNotFound
	// when no record matched.
	DeleteByID(ctx context.Context, id string) error
}
