package revokedtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/dbx"
	"github.com/arsansys/siva/internal/server/models"
)

// PostgresRepository implements the revocation ledger over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts the deny-list entry for token. ON CONFLICT DO NOTHING makes
// the write idempotent and keeps existing records immutable.
func (r *PostgresRepository) Record(ctx context.Context, token, username string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (token, username, expires_at, is_valid)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (token) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, token, username, expiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Find returns the ledger entry for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RevokedToken, error) {
	query := `
		SELECT token, username, expires_at, is_valid
		FROM revoked_tokens
		WHERE token = $1
	`
	rt := &models.RevokedToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&rt.Token, &rt.Username, &rt.ExpiresAt, &rt.IsValid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// FindByUsername returns the newest ledger entry recorded for username,
// or common.ErrorNotFound.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.RevokedToken, error) {
	query := `
		SELECT token, username, expires_at, is_valid
		FROM revoked_tokens
		WHERE username = $1
		ORDER BY expires_at DESC
		LIMIT 1
	`
	rt := &models.RevokedToken{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&rt.Token, &rt.Username, &rt.ExpiresAt, &rt.IsValid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// DeleteExpired removes entries whose expiry has passed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM revoked_tokens
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return deleted, nil
}
