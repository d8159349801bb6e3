package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophauth/internal/apperrors"
	"github.com/nkiryanov/gophauth/internal/models"
	"github.com/nkiryanov/gophauth/internal/repository"
	"github.com/nkiryanov/gophauth/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshtoken"
	defaultRole              = "User"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during registration and login
	// If not set then DefaultHasher is used
	Hasher PasswordHasher

	// Roles assigned to every registered user
	// If not set then the single default role is used
	DefaultRoles []string

	// How tokens travel in http requests and responses
	// If not set then defaults are used
	AccessHeaderName  string
	AccessAuthScheme  string
	RefreshCookieName string
}

// Auth service: the only entry point for register, login, refresh and logout.
// Owns no state itself, everything lives in the injected repos
type AuthService struct {
	// Manager to issue and validate token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// Hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access user records
	userRepo repository.UserRepo

	defaultRoles      []string
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	setDefaultString := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefaultString(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefaultString(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefaultString(&cfg.RefreshCookieName, defaultRefreshCookieName)

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if len(cfg.DefaultRoles) == 0 {
		cfg.DefaultRoles = []string{defaultRole}
	}

	return &AuthService{
		token:             token,
		hasher:            cfg.Hasher,
		userRepo:          userRepo,
		defaultRoles:      cfg.DefaultRoles,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
	}, nil
}

// Register new user and issue the first token pair
// Duplicate username (case insensitive) returns apperrors.ErrUserAlreadyExists
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (models.TokenPair, models.User, error) {
	if strings.TrimSpace(username) == "" {
		return models.TokenPair{}, models.User{}, fmt.Errorf("username: %w", apperrors.ErrFieldRequired)
	}
	if password == "" {
		return models.TokenPair{}, models.User{}, fmt.Errorf("password: %w", apperrors.ErrFieldRequired)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, username, email, hash, s.defaultRoles)
	if err != nil {
		return models.TokenPair{}, models.User{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return pair, user, nil
}

// Login user with username and password
// Unknown user and wrong password both return apperrors.ErrUserNotFound,
// the caller must not be able to tell which one happened
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, models.User, error) {
	// Ignore lookup error: empty record fails the password check below anyway
	// and the error path stays the same for both cases
	user, _ := s.userRepo.GetUserByUsername(ctx, username)

	err := s.hasher.Compare(user.HashedPassword, password)
	if err != nil {
		return models.TokenPair{}, models.User{}, apperrors.ErrUserNotFound
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return pair, user, nil
}

// Refresh token pair using a valid refresh token
// The presented token is revoked in the same step ("rotation"): a stolen
// refresh token is good for one use at most
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, models.User, error) {
	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("refresh failed. Err: %w", err)
	}

	user, err := s.userRepo.GetUserByID(ctx, token.UserID)
	if err != nil {
		// User is gone: same answer as for any other bad token
		return models.TokenPair{}, models.User{}, fmt.Errorf("refresh failed. Err: %w", apperrors.ErrRefreshTokenNotFound)
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, models.User{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return pair, user, nil
}

// Logout revokes the refresh token
// Always succeeds: revoking unknown or already dead token is a no-op,
// the caller learns nothing about token validity
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.token.RevokeRefresh(ctx, refresh)
}

// LogoutEverywhere revokes every refresh token of the user
// Access tokens already issued stay valid until they expire
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID uuid.UUID) error {
	return s.token.RevokeAllForUser(ctx, userID)
}

// Auth authenticates the request by it's bearer access token
// Verification is stateless: signature, expiry, issuer and audience only.
// The returned user view is built from claims frozen at issue time
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get(s.accessHeaderName)
	access, found := strings.CutPrefix(header, s.accessAuthScheme+" ")
	if !found || access == "" {
		return models.User{}, apperrors.ErrUserNotFound
	}

	claims, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, fmt.Errorf("access token is not valid. Err: %w", err)
	}

	return models.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    claims.Roles,
	}, nil
}

// Set token pair to response: access to header, refresh to http only cookie
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
	http.SetCookie(w, s.refreshCookie(pair.Refresh))
}

// Set token pair to request the same way SetTokenPairToResponse does
// Useful in tests and client code
func (s *AuthService) SetTokenPairToRequest(r *http.Request, pair models.TokenPair) {
	r.Header.Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
	r.AddCookie(s.refreshCookie(pair.Refresh))
}

// Get refresh token string from request cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", apperrors.ErrRefreshTokenNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func (s *AuthService) refreshCookie(refresh models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		Expires:  refresh.ExpiresAt,
		MaxAge:   int(time.Until(refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
