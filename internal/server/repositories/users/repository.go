// Package users declares the server-side repository contract for user
// account records.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Create stores a new user. Returns common.ErrorAlreadyExists when the
	// email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email, or
	// common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword replaces the user's password hash.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// MarkEmailVerified flags the user's email as confirmed.
	MarkEmailVerified(ctx context.Context, id string) error

	// SetTwoFaEnabled toggles two-factor login for the user.
	SetTwoFaEnabled(ctx context.Context, id string, enabled bool) error
}
