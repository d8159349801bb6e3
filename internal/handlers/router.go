package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/gophauth/internal/handlers/middleware"
	"github.com/nkiryanov/gophauth/internal/logger"
	"github.com/nkiryanov/gophauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiauth := http.NewServeMux()

	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiauth.Handle("POST /logout", handleLogout(authService, logger))

	apiauth.Handle("POST /logout_all", withAuth(handleLogoutEverywhere(authService, logger)))
	apiauth.Handle("GET /validate", withAuth(handleValidate()))
	apiauth.Handle("GET /me", withAuth(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("GET /metrics", promhttp.Handler())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.MetricsMiddleware(),
	)

	return handler
}

type authService interface {
	// Register user with username, email and password
	// Has to return apperrors.ErrUserAlreadyExists if username is taken (case insensitive)
	Register(ctx context.Context, username string, email string, password string) (models.TokenPair, models.User, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound for unknown user AND for wrong password
	Login(ctx context.Context, username string, password string) (models.TokenPair, models.User, error)

	// Rotate tokens using refresh token
	// Any bad token state has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, models.User, error)

	// Revoke refresh token, idempotent
	Logout(ctx context.Context, refresh string) error

	// Revoke every refresh token of the user
	LogoutEverywhere(ctx context.Context, userID uuid.UUID) error

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request cookie
	GetRefreshString(r *http.Request) (string, error)
}
