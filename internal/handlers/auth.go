package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/gophauth/internal/apperrors"
	"github.com/nkiryanov/gophauth/internal/handlers/render"
	"github.com/nkiryanov/gophauth/internal/handlers/userctx"
	"github.com/nkiryanov/gophauth/internal/logger"
	"github.com/nkiryanov/gophauth/internal/metrics"
	"github.com/nkiryanov/gophauth/internal/models"
)

// Response for every handler that issues tokens
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Username     string    `json:"username"`
	Roles        []string  `json:"roles"`
}

func tokenResponse(pair models.TokenPair, user models.User) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		ExpiresAt:    pair.Access.ExpiresAt,
		Username:     user.Username,
		Roles:        user.Roles,
	}
}

func handleRegister(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			metrics.RegistrationsTotal.WithLabelValues(metrics.ResultFail).Inc()
			return
		}

		pair, user, err := auth.Register(r.Context(), data.Username, data.Email, data.Password)
		if err != nil {
			metrics.RegistrationsTotal.WithLabelValues(metrics.ResultFail).Inc()
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "User already exists", http.StatusConflict)
			case errors.Is(err, apperrors.ErrFieldRequired):
				render.ServiceError(w, "Username and password are required", http.StatusBadRequest)
			default:
				l.Error("registration failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultOK).Inc()
		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokenResponse(pair, user))
	})
}

func handleLogin(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			metrics.LoginsTotal.WithLabelValues(metrics.ResultFail).Inc()
			return
		}

		pair, user, err := auth.Login(r.Context(), data.Username, data.Password)
		if err != nil {
			metrics.LoginsTotal.WithLabelValues(metrics.ResultFail).Inc()
			switch {
			case errors.Is(err, apperrors.ErrUserNotFound):
				// Same answer for unknown user and wrong password
				render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
			default:
				l.Error("login failed", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		metrics.LoginsTotal.WithLabelValues(metrics.ResultOK).Inc()
		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokenResponse(pair, user))
	})
}

func handleTokenRefresh(auth authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := refreshFromRequest(auth, r)
		if err != nil {
			metrics.RefreshesTotal.WithLabelValues(metrics.ResultFail).Inc()
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, user, err := auth.RefreshPair(r.Context(), refresh)
		if err != nil {
			metrics.RefreshesTotal.WithLabelValues(metrics.ResultFail).Inc()
			l.Info("refresh rejected", "error", err.Error())
			// Missing, expired and revoked tokens all get the same answer
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		metrics.RefreshesTotal.WithLabelValues(metrics.ResultOK).Inc()
		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokenResponse(pair, user))
	})
}

func handleLogout(auth authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Logout never fails: nothing about token validity may leak here.
		// Missing token is treated the same as any already dead one
		refresh, _ := refreshFromRequest(auth, r)

		if err := auth.Logout(r.Context(), refresh); err != nil {
			l.Error("logout failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		metrics.LogoutsTotal.Inc()
		render.JSON(w, response{Message: "Logged out successfully"})
	})
}

func handleLogoutEverywhere(auth authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Route is behind auth middleware, user must be in context
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if err := auth.LogoutEverywhere(r.Context(), user.ID); err != nil {
			l.Error("logout everywhere failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		metrics.LogoutsTotal.Inc()
		render.JSON(w, response{Message: "Logged out on all devices"})
	})
}

// Refresh token may come in the auth cookie or in the request body
func refreshFromRequest(auth authService, r *http.Request) (string, error) {
	if refresh, err := auth.GetRefreshString(r); err == nil {
		return refresh, nil
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken, nil
	}

	return "", apperrors.ErrRefreshTokenNotFound
}
