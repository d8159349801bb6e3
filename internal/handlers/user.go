package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophauth/internal/handlers/render"
	"github.com/nkiryanov/gophauth/internal/handlers/userctx"
)

// handleValidate reports that the presented access token is good.
// All the work is done by the auth middleware, the handler only confirms it
func handleValidate() http.Handler {
	type response struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "ok", Timestamp: time.Now().UTC()})
	})
}

// handleUserMe returns identity of the authenticated user as seen in token claims
func handleUserMe() http.Handler {
	type response struct {
		ID       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Email    string    `json:"email,omitempty"`
		Roles    []string  `json:"roles"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Roles:    user.Roles,
		})
	})
}
