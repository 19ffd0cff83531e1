package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arsansys/siva/internal/common"
	"github.com/arsansys/siva/internal/logging"
	"github.com/arsansys/siva/internal/server/auth"
	"github.com/arsansys/siva/internal/server/models"
	"github.com/arsansys/siva/internal/server/repositories/revokedtokens"
)

// TokenService orchestrates the token lifecycle: it mints tokens through the
// codec and rejects revoked-but-unexpired tokens through the revocation
// ledger.
//
// Conceptually a token moves through
// Issued -> Active -> Expired | Revoked; both terminal states are
// indistinguishable to callers of Validate, which only ever reports
// common.ErrInvalidToken. The detailed reason is logged internally.
type TokenService struct {
	codec  *auth.Codec
	ledger revokedtokens.Repository
	ttl    time.Duration
	logger logging.Logger

	// now is a test seam for time.Now.
	now func() time.Time
}

func NewTokenService(codec *auth.Codec, ledger revokedtokens.Repository, ttl time.Duration, l logging.Logger) *TokenService {
	return &TokenService{
		codec:  codec,
		ledger: ledger,
		ttl:    ttl,
		logger: l.With("module", "token_service"),
		now:    time.Now,
	}
}

// IssueFor mints a signed token for subject with the configured TTL.
// Unrevoked tokens are stateless: nothing is persisted here.
func (s *TokenService) IssueFor(subject string) (string, error) {
	token, err := s.codec.Issue(subject, s.now(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// Validate checks tokenString and returns its subject. The signature/expiry
// check runs before the ledger lookup, so a forged or expired token never
// touches storage. A ledger failure fails closed: access is never granted
// when revocation state cannot be checked.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.codec.Verify(tokenString, s.now())
	if err != nil {
		s.logger.Debug(ctx, "rejecting token", "reason", err.Error())
		return "", common.ErrInvalidToken
	}

	record, err := s.ledger.Find(ctx, tokenString)
	switch {
	case err == nil:
		if !record.IsValid {
			s.logger.Debug(ctx, "rejecting revoked token", "username", record.Username)
			return "", common.ErrInvalidToken
		}
	case errors.Is(err, common.ErrorNotFound):
		// never revoked
	default:
		s.logger.Error(ctx, "revocation ledger unavailable, failing closed", "error", err.Error())
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

// Revoke records tokenString in the revocation ledger. Claims are decoded
// without verification: a token must be revocable after it expired and
// regardless of its signature state, so that logout always works. A token
// too malformed to carry claims is logged and dropped; there is nothing a
// verifier could ever accept, hence nothing to deny. A ledger write failure
// is surfaced to the caller, since silently skipping it would leave the
// token trusted.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.codec.Decode(tokenString)
	if err != nil {
		s.logger.Warn(ctx, "cannot revoke malformed token", "error", err.Error())
		return nil
	}

	if err := s.ledger.Record(ctx, tokenString, claims.Subject, claims.ExpiresAt); err != nil {
		return fmt.Errorf("recording revocation: %w", err)
	}

	s.logger.Info(ctx, "token revoked", "username", claims.Subject)
	return nil
}

// FindRevocation returns the newest revocation record for a subject.
// Admin/diagnostics only.
func (s *TokenService) FindRevocation(ctx context.Context, username string) (*models.RevokedToken, error) {
	return s.ledger.FindByUsername(ctx, username)
}

// PurgeExpired garbage-collects ledger entries whose tokens have expired on
// their own.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.ledger.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purging revocation ledger: %w", err)
	}
	return deleted, nil
}
