package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophauth/internal/logger"
	"github.com/nkiryanov/gophauth/internal/repository/memory"
	"github.com/nkiryanov/gophauth/internal/service/auth"
	"github.com/nkiryanov/gophauth/internal/service/auth/tokenmanager"
)

// Full service stack over in-memory storage, routed the same way production is
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	storage := memory.NewStorage()

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  "test-secret-key",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, storage.Refresh())
	require.NoError(t, err)

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(authService, logger.NewNoOpLogger()))
	t.Cleanup(srv.Close)

	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decodeTokens(t *testing.T, resp *http.Response) TokenResponse {
	t.Helper()

	var tokens TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))

	return tokens
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refreshtoken" {
			return cookie
		}
	}

	t.Fatal("refreshtoken cookie not found in response")
	return nil
}

func Test_HandleRegister(t *testing.T) {
	t.Parallel()

	t.Run("register ok", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/register", `{"username": "nkiryanov", "email": "nk@example.com", "password": "strong-password"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		tokens := decodeTokens(t, resp)
		assert.NotEmpty(t, tokens.AccessToken, "access token should be in response body")
		assert.NotEmpty(t, tokens.RefreshToken, "refresh token should be in response body")
		assert.Equal(t, "nkiryanov", tokens.Username)
		assert.Equal(t, []string{"User"}, tokens.Roles)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), tokens.ExpiresAt, time.Minute)

		assert.True(t, strings.HasPrefix(resp.Header.Get("Authorization"), "Bearer "), "access token should be set to header")

		cookie := refreshCookie(t, resp)
		assert.Equal(t, tokens.RefreshToken, cookie.Value)
		assert.True(t, cookie.HttpOnly, "refresh cookie should not be readable from scripts")
		assert.Equal(t, "/", cookie.Path)
	})

	t.Run("conflict if username taken", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/register", `{"username": "nkiryanov", "password": "strong-password"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = postJSON(t, srv, "/api/auth/register", `{"username": "NKiryanov", "password": "other-password"}`)

		require.Equal(t, http.StatusConflict, resp.StatusCode, "same username in different case should conflict")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error": "service_error", "message": "User already exists"}`, string(body))
	})

	t.Run("validation failed", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "no username", body: `{"password": "strong-password"}`},
			{name: "short username", body: `{"username": "a", "password": "strong-password"}`},
			{name: "no password", body: `{"username": "nkiryanov"}`},
			{name: "short password", body: `{"username": "nkiryanov", "password": "12345"}`},
			{name: "bad email", body: `{"username": "nkiryanov", "email": "not-an-email", "password": "strong-password"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestServer(t)

				resp := postJSON(t, srv, "/api/auth/register", tt.body)

				require.Equal(t, http.StatusBadRequest, resp.StatusCode)

				var errResp struct {
					Error string `json:"error"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
				assert.Equal(t, "validation_failed", errResp.Error)
			})
		}
	})

	t.Run("broken json", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/register", `{"username": `)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Equal(t, "decoding_failed", errResp.Error)
	})
}

func Test_HandleLogin(t *testing.T) {
	t.Parallel()

	t.Run("login ok", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/register", `{"username": "demo", "email": "demo@example.com", "password": "demo123"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = postJSON(t, srv, "/api/auth/login", `{"username": "demo", "password": "demo123"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		tokens := decodeTokens(t, resp)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Contains(t, tokens.Roles, "User")
		refreshCookie(t, resp)
	})

	t.Run("unauthorized", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "wrong password", body: `{"username": "demo", "password": "wrong"}`},
			{name: "unknown user", body: `{"username": "nobody", "password": "demo123"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestServer(t)

				resp := postJSON(t, srv, "/api/auth/register", `{"username": "demo", "password": "demo123"}`)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				resp = postJSON(t, srv, "/api/auth/login", tt.body)

				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, `{"error": "service_error", "message": "Invalid username or password"}`, string(body), "error body should not hint which part was wrong")
			})
		}
	})
}

func Test_HandleTokenRefresh(t *testing.T) {
	t.Parallel()

	register := func(t *testing.T, srv *httptest.Server) (TokenResponse, *http.Cookie) {
		resp := postJSON(t, srv, "/api/auth/register", `{"username": "nkiryanov", "password": "strong-password"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cookie := refreshCookie(t, resp)
		return decodeTokens(t, resp), cookie
	}

	t.Run("refresh with cookie", func(t *testing.T) {
		srv := newTestServer(t)
		tokens, cookie := register(t, srv)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/refresh", nil)
		require.NoError(t, err)
		req.AddCookie(cookie)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		rotated := decodeTokens(t, resp)
		assert.NotEqual(t, tokens.AccessToken, rotated.AccessToken, "access token should be rotated")
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken, "refresh token should be rotated")
		refreshCookie(t, resp)
	})

	t.Run("refresh with json body", func(t *testing.T) {
		srv := newTestServer(t)
		tokens, _ := register(t, srv)

		resp := postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+tokens.RefreshToken+`"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		rotated := decodeTokens(t, resp)
		assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	})

	t.Run("second use of same token fails", func(t *testing.T) {
		srv := newTestServer(t)
		tokens, _ := register(t, srv)

		resp := postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+tokens.RefreshToken+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+tokens.RefreshToken+`"}`)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error": "service_error", "message": "Refresh token not found"}`, string(body))
	})

	t.Run("unauthorized without token", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/refresh", `{}`)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unauthorized with garbage token", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "never-issued"}`)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error": "service_error", "message": "Refresh token not found"}`, string(body), "unknown token should be indistinguishable from expired or revoked")
	})
}

func Test_HandleLogout(t *testing.T) {
	t.Parallel()

	t.Run("logout revokes refresh token", func(t *testing.T) {
		srv := newTestServer(t)

		resp := postJSON(t, srv, "/api/auth/register", `{"username": "nkiryanov", "password": "strong-password"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		tokens := decodeTokens(t, resp)

		resp = postJSON(t, srv, "/api/auth/logout", `{"refresh_token": "`+tokens.RefreshToken+`"}`)

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"message": "Logged out successfully"}`, string(body))

		// Revoked token must not refresh anymore
		resp = postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+tokens.RefreshToken+`"}`)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout always succeeds", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "no token at all", body: `{}`},
			{name: "empty body", body: ``},
			{name: "garbage token", body: `{"refresh_token": "never-issued"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestServer(t)

				resp := postJSON(t, srv, "/api/auth/logout", tt.body)

				require.Equal(t, http.StatusOK, resp.StatusCode, "logout must not leak token validity")
			})
		}
	})
}

func Test_HandleLogoutEverywhere(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/auth/register", `{"username": "nkiryanov", "password": "strong-password"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeTokens(t, resp)

	resp = postJSON(t, srv, "/api/auth/login", `{"username": "nkiryanov", "password": "strong-password"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeTokens(t, resp)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/logout_all", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+second.AccessToken)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Logged out on all devices"}`, string(body))

	// Every session is dead now
	resp = postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+first.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = postJSON(t, srv, "/api/auth/refresh", `{"refresh_token": "`+second.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
