// Package memory keeps all service state in process memory.
// It is the only storage backend: the service is deliberately not durable,
// restart drops every user and refresh token.
package memory

import (
	"github.com/nkiryanov/gophauth/internal/repository"
)

type Storage struct {
	users   *UserRepo
	refresh *RefreshTokenRepo
}

func NewStorage() repository.Storage {
	return &Storage{
		users:   NewUserRepo(),
		refresh: NewRefreshTokenRepo(),
	}
}

func (s *Storage) User() repository.UserRepo {
	return s.users
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return s.refresh
}
