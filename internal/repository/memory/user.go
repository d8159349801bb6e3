package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophauth/internal/apperrors"
	"github.com/nkiryanov/gophauth/internal/models"
)

type UserRepo struct {
	mu sync.RWMutex

	// Users by id and by lower cased username
	// Username case is preserved in the record but uniqueness is case insensitive
	byID   map[uuid.UUID]models.User
	byName map[string]uuid.UUID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:   make(map[uuid.UUID]models.User),
		byName: make(map[string]uuid.UUID),
	}
}

func (r *UserRepo) CreateUser(ctx context.Context, username string, email string, hashedPassword string, roles []string) (models.User, error) {
	key := usernameKey(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check and insert under the same lock, so two concurrent registrations
	// with the same username can't both pass
	if _, exists := r.byName[key]; exists {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      time.Now().UTC(),
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		Roles:          slices.Clone(roles),
	}

	r.byID[user.ID] = user
	r.byName[key] = user.ID

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[usernameKey(username)]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return r.byID[id], nil
}

func usernameKey(username string) string {
	return strings.ToLower(username)
}
