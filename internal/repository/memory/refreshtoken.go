package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophauth/internal/apperrors"
	"github.com/nkiryanov/gophauth/internal/models"
)

type RefreshTokenRepo struct {
	mu sync.RWMutex

	// Tokens keyed by the opaque token string
	// Expired records stay here until process restart: expiry is checked lazily
	// on every read and nothing sweeps the map in background
	tokens map[string]models.RefreshToken
}

func NewRefreshTokenRepo() *RefreshTokenRepo {
	return &RefreshTokenRepo{
		tokens: make(map[string]models.RefreshToken),
	}
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.Token]; exists {
		return apperrors.ErrRefreshTokenExists
	}

	r.tokens[token.Token] = token
	return nil
}

func (r *RefreshTokenRepo) GetValid(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[tokenString]
	if !ok || token.Revoked() || !token.ExpiresAt.After(now) {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (r *RefreshTokenRepo) GetAndRevoke(ctx context.Context, tokenString string, now time.Time) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenString]
	if !ok || token.Revoked() || !token.ExpiresAt.After(now) {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}

	token.RevokedAt = &now
	r.tokens[tokenString] = token

	return token, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, tokenString string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenString]
	if !ok || token.Revoked() {
		return nil
	}

	now := time.Now().UTC()
	token.RevokedAt = &now
	r.tokens[tokenString] = token

	return nil
}

// RevokeAllForUser scans the whole map under the write lock.
// Token issue and validation wait for the scan to finish, which is fine for
// the expected map sizes. A sharded map is the way out if it ever shows up
// in contention profiles
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for key, token := range r.tokens {
		if token.UserID != userID || token.Revoked() {
			continue
		}
		token.RevokedAt = &now
		r.tokens[key] = token
	}

	return nil
}
