package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// The only error for every bad refresh token state
	// Missing, expired and revoked tokens must not be distinguishable by callers
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// Returned on token string collision during issue
	// Practically impossible with 256 bits of entropy, but storage must not overwrite silently
	ErrRefreshTokenExists = errors.New("refresh token already exists")

	ErrFieldRequired = errors.New("required field is blank")
)
