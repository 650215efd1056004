// refresh_token.go defines the RefreshToken model used for credential renewal.
// Tokens are single-use: rotation revokes the presented token and links it to its
// replacement, so a replayed token is observably already-revoked.
package models

import "time"

// RefreshToken is an opaque renewal credential tied to one user. Tokens are never
// deleted; revocation is a flag plus timestamp so the rotation chain stays auditable.
type RefreshToken struct {
	ID              int64
	UserID          int64
	Token           string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	CreatedByIP     string
	Revoked         bool
	RevokedAt       *time.Time
	RevokedByIP     *string
	ReplacedByToken *string
}

// IsExpired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsable reports whether the token can still be presented for refresh.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
