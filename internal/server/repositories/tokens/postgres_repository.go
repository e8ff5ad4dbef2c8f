package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, userID string, value string, purpose models.TokenPurpose, expiresAt time.Time) error {

	query :=
		`INSERT INTO tokens (id, user_id, value, purpose, kind, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), userID, value, purpose, models.KindSession, expiresAt)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindSession(ctx context.Context, value string, purpose models.TokenPurpose) (*models.Token, error) {

	query :=
		`SELECT id, user_id, value, purpose, kind, expires_at, revoked, created_at, updated_at
		 FROM tokens
		 WHERE value = $1 AND purpose = $2 AND kind = $3
		 `

	token := &models.Token{}
	err := r.db.QueryRowContext(ctx, query, value, purpose, models.KindSession).Scan(
		&token.ID, &token.UserID, &token.Value, &token.Purpose, &token.Kind,
		&token.ExpiresAt, &token.Revoked, &token.CreatedAt, &token.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return token, nil
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, value string, purpose models.TokenPurpose) error {

	query :=
		`DELETE FROM tokens
		 WHERE value = $1 AND purpose = $2 AND kind = $3
		 `

	res, err := r.db.ExecContext(ctx, query, value, purpose, models.KindSession)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) FindCodeForUpdate(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.Token, error) {

	query :=
		`SELECT id, user_id, value, purpose, kind, expires_at, revoked, request_count, cooldown_minutes, created_at, updated_at
		 FROM tokens
		 WHERE user_id = $1 AND purpose = $2 AND kind = $3
		 FOR UPDATE
		 `

	token := &models.Token{}
	err := r.db.QueryRowContext(ctx, query, userID, purpose, models.KindOneTimeCode).Scan(
		&token.ID, &token.UserID, &token.Value, &token.Purpose, &token.Kind,
		&token.ExpiresAt, &token.Revoked, &token.RequestCount, &token.CooldownMinutes,
		&token.CreatedAt, &token.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return token, nil
}

func (r *PostgresRepository) CreateCode(ctx context.Context, token *models.Token) error {

	query :=
		`INSERT INTO tokens (id, user_id, value, purpose, kind, expires_at, request_count, cooldown_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), token.UserID, token.Value, token.Purpose, models.KindOneTimeCode,
		token.ExpiresAt, token.RequestCount, token.CooldownMinutes)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ReplaceCode(ctx context.Context, id string, valueHash string, expiresAt time.Time, requestCount int, cooldownMinutes int, resetWindow bool) error {

	query :=
		`UPDATE tokens
		 SET value = $2, expires_at = $3, request_count = $4, cooldown_minutes = $5,
		     created_at = CASE WHEN $6 THEN now() ELSE created_at END,
		     updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, valueHash, expiresAt, requestCount, cooldownMinutes, resetWindow)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) SetCodeCooldown(ctx context.Context, id string, cooldownMinutes int) error {

	query :=
		`UPDATE tokens
		 SET cooldown_minutes = $2, updated_at = now()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, cooldownMinutes)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {

	query :=
		`DELETE FROM tokens
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
