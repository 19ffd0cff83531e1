package models

import "time"

// RevokedToken is a deny-list entry for a token invalidated before its
// natural expiry. Keyed by the raw token string; a record is only ever
// written with IsValid=false and never mutated afterwards. Absence of a
// record means "never revoked". Records become garbage once ExpiresAt has
// passed, since expiry alone then rejects the token.
type RevokedToken struct {
	Token     string
	Username  string
	ExpiresAt time.Time
	IsValid   bool
}
