package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with given username, email and already hashed password
	// Username uniqueness is case insensitive and the check is atomic with the insert:
	// of two concurrent calls with the same username exactly one may succeed.
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, email string, hashedPassword string, roles []string) (models.User, error)

	// Get user by it's id or username (case insensitive)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save token in repository
	// Insert is atomic: if token string exists already must return apperrors.ErrRefreshTokenExists
	Save(ctx context.Context, token models.RefreshToken) error

	// Return a valid token only: existing, not revoked and not expired at 'now'
	// Expiry is checked lazily here, nothing sweeps expired records in background.
	// Any invalid state must collapse to apperrors.ErrRefreshTokenNotFound
	GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error)

	// Same validity rules as GetValid but additionally marks the token revoked.
	// Check and flip are atomic: of two concurrent calls with the same token
	// exactly one may get it back, the second must fail
	GetAndRevoke(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error)

	// Mark token revoked
	// Idempotent: revoking twice or revoking unknown token is not an error
	Revoke(ctx context.Context, tokenString string) error

	// Revoke every token that belongs to the user ("log out everywhere")
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Storage aggregates all repositories
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
}
