// Package revokedtokens is the revocation ledger: a durable deny-list of
// access tokens invalidated before their natural expiry, keyed by the raw
// token string. Absence of a record means "never revoked"; a stored record
// always means revoked, since records are only ever written with
// is_valid=false and never mutated afterwards.
package revokedtokens

import (
	"context"
	"time"

	"github.com/arsansys/siva/internal/server/models"
)

type Repository interface {
	// Record durably upserts the deny-list entry for token. It is
	// idempotent: recording the same token twice leaves the ledger in the
	// same state as recording it once.
	Record(ctx context.Context, token, username string, expiresAt time.Time) error

	// Find returns the ledger entry for the exact token string, or
	// common.ErrorNotFound when the token was never revoked.
	Find(ctx context.Context, token string) (*models.RevokedToken, error)

	// FindByUsername returns the most recent ledger entry for a subject.
	// Diagnostics/admin only, never on the validation hot path.
	FindByUsername(ctx context.Context, username string) (*models.RevokedToken, error)

	// DeleteExpired removes entries whose expires_at is not after now and
	// returns how many were deleted. Expired entries are dead weight:
	// expiry alone already rejects those tokens.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
