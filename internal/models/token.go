package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil if token not revoked
}

// Revoked reports whether the token was explicitly invalidated.
// Revocation is terminal: there is no way to clear RevokedAt
func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
