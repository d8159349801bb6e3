package integration

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophauth/internal/handlers"
	"github.com/nkiryanov/gophauth/internal/logger"
	"github.com/nkiryanov/gophauth/internal/repository"
	"github.com/nkiryanov/gophauth/internal/repository/memory"
	"github.com/nkiryanov/gophauth/internal/service/auth"
	"github.com/nkiryanov/gophauth/internal/service/auth/tokenmanager"
)

const RefreshTTL = 24 * time.Hour

type Services struct {
	AuthService *auth.AuthService
	Storage     repository.Storage
}

// Run starts the whole service on fresh in-memory storage and calls fn with
// the server URL. Every call gets its own isolated state, no cleanup needed
func Run(t *testing.T, fn func(srvURL string, services Services)) {
	t.Helper()

	storage := memory.NewStorage()

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  "test-secret",
		RefreshTTL: RefreshTTL,
	}, storage.Refresh())
	require.NoError(t, err, "token manager should be created without errors")

	as, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	require.NoError(t, err, "auth service starting error", err)

	router := handlers.NewRouter(as, logger.NewNoOpLogger())

	srv := httptest.NewServer(router)
	defer srv.Close()

	fn(srv.URL, Services{
		AuthService: as,
		Storage:     storage,
	})
}
