// Package auth implements the signed access-token codec: HS256 JWTs whose
// claims are exactly {sub, iat, exp}. The clock is always supplied by the
// caller, so expiry behavior is fully testable.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arsansys/siva/internal/common"
)

// Claims are the decoded token claims.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec issues and verifies access tokens with a fixed symmetric key.
type Codec struct {
	key []byte
}

func NewCodec(key []byte) *Codec {
	return &Codec{key: key}
}

// Issue produces a signed token for subject with claims
// {sub=subject, iat=now, exp=now+ttl}.
func (c *Codec) Issue(subject string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(c.key)
}

// Verify checks the signature and expiry of tokenString against the supplied
// clock and returns the decoded claims.
//
// Failure modes map onto the shared sentinels: common.ErrTokenMalformed,
// common.ErrSignatureInvalid and common.ErrTokenExpired. A token is expired
// as soon as now >= exp; the jwt library treats now == exp as valid, so the
// boundary is enforced here explicitly.
func (c *Codec) Verify(tokenString string, now time.Time) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	claims := &jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, common.ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, common.ErrSignatureInvalid
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, common.ErrTokenExpired
		default:
			return nil, common.ErrInvalidToken
		}
	}

	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, common.ErrTokenExpired
	}

	return fromRegistered(claims), nil
}

// Decode extracts claims without verifying signature or expiry. It exists
// for the revocation path only: a token must be revocable even after it
// expired and regardless of its signature state. Structurally broken tokens
// return common.ErrTokenMalformed.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, common.ErrTokenMalformed
	}
	return fromRegistered(claims), nil
}

func fromRegistered(rc *jwt.RegisteredClaims) *Claims {
	c := &Claims{Subject: rc.Subject}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c
}
