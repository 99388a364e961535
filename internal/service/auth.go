// Package service implements the write paths of the catalog: account
// management, author and book records, favorites, and comments. Services
// validate requests, enforce ownership rules, and persist through the store;
// live subscriptions pick up the resulting change events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libroteca/libroteca/internal/auth"
	"github.com/libroteca/libroteca/internal/domain"
	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/id"
	"github.com/libroteca/libroteca/internal/normalize"
	"github.com/libroteca/libroteca/internal/ratelimit"
	"github.com/libroteca/libroteca/internal/store"
	"github.com/libroteca/libroteca/internal/validation"
)

// AuthState describes the signed-in account at a point in time.
// User is nil when nobody is signed in.
type AuthState struct {
	User *domain.User
}

// AuthService handles account registration, sign-in, and token verification.
// It publishes an AuthState on every transition so the session tracker can
// follow who is signed in without polling.
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	validator    *validation.Validator
	limiter      *ratelimit.KeyedRateLimiter
	logger       *slog.Logger

	mu      sync.RWMutex
	current *domain.User
	states  chan AuthState
}

// NewAuthService creates a new authentication service. signInPerMinute
// bounds sign-in attempts per email address.
func NewAuthService(
	store *store.Store,
	tokenService *auth.TokenService,
	signInPerMinute int,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:        store,
		tokenService: tokenService,
		validator:    validation.New(),
		limiter:      ratelimit.PerMinute(signInPerMinute),
		logger:       logger,
		states:       make(chan AuthState, 16),
	}
}

// RegisterRequest contains new account data.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
}

// SignInRequest contains user credentials.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdatePasswordRequest contains a password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=1024"`
}

// AuthResponse contains the signed-in user and their access token.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// States returns the auth transition channel. A single consumer (the
// session tracker) is expected to drain it.
func (s *AuthService) States() <-chan AuthState {
	return s.states
}

// Current returns the signed-in user, or nil when signed out.
func (s *AuthService) Current() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Register creates a new account with a profile document and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Meta: domain.Meta{
			ID: userID,
		},
		Email:        normalize.Email(req.Email),
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		LastLoginAt:  time.Now(),
	}
	user.InitTimestamps()

	if err := s.store.Users.Create(ctx, userID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.setCurrent(user)

	if s.logger != nil {
		s.logger.Info("user registered",
			"user_id", userID,
			"email", user.Email,
		)
	}

	return &AuthResponse{User: user, AccessToken: token}, nil
}

// SignIn authenticates a user by email and password. A missing account and
// a wrong password report the same error so the response does not leak
// whether the email exists. Attempts per email are rate limited.
func (s *AuthService) SignIn(ctx context.Context, req SignInRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := normalize.Email(req.Email)
	if !s.limiter.Allow(email) {
		return nil, domainerrors.Unauthorized("too many sign-in attempts, try again later")
	}

	user, err := s.store.Users.GetByIndex(ctx, "email", email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.store.Users.Update(ctx, user.ID, user); err != nil {
		// Log but don't fail sign-in
		if s.logger != nil {
			s.logger.Warn("failed to update last login time",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.setCurrent(user)

	if s.logger != nil {
		s.logger.Info("user signed in", "user_id", user.ID)
	}

	return &AuthResponse{User: user, AccessToken: token}, nil
}

// SignOut clears the signed-in user. Safe to call when already signed out.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setCurrent(nil)
	return nil
}

// UpdateDisplayName changes the signed-in user's display name. New comments
// pick up the new name; existing comments keep the name they were written
// under.
func (s *AuthService) UpdateDisplayName(ctx context.Context, userID, displayName string) (*domain.User, error) {
	if displayName == "" {
		return nil, domainerrors.Validation("display_name is required")
	}

	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.DisplayName = displayName
	user.Touch()
	if err := s.store.Users.Update(ctx, userID, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.refreshCurrent(user)
	return user, nil
}

// UpdatePassword changes the user's password after verifying the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, req UpdatePasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("user not found")
		}
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return domainerrors.InvalidCredentials("current password is incorrect")
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.Touch()
	if err := s.store.Users.Update(ctx, userID, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.refreshCurrent(user)
	return nil
}

// DeleteAccount removes the user document and their favorites, then signs
// out. Comments are kept; they render under the name captured at write time,
// and any view that resolves authors live falls back to the anonymous name.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("user not found")
		}
		return fmt.Errorf("get user: %w", err)
	}

	for fav, err := range s.store.Favorites.List(ctx) {
		if err != nil {
			return fmt.Errorf("list favorites: %w", err)
		}
		if fav.UserID != userID {
			continue
		}
		if err := s.store.Favorites.Delete(ctx, fav.ID); err != nil {
			return fmt.Errorf("delete favorite %s: %w", fav.ID, err)
		}
	}

	if err := s.store.Users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.mu.RLock()
	wasCurrent := s.current != nil && s.current.ID == userID
	s.mu.RUnlock()
	if wasCurrent {
		s.setCurrent(nil)
	}

	if s.logger != nil {
		s.logger.Info("account deleted", "user_id", userID)
	}
	return nil
}

// VerifyAccessToken validates a token and returns the associated user.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid token").WithCause(err)
	}

	user, err := s.store.Users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domainerrors.Unauthorized("user not found")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}

// setCurrent records the signed-in user and publishes the transition.
func (s *AuthService) setCurrent(user *domain.User) {
	s.mu.Lock()
	s.current = user
	s.mu.Unlock()
	s.publish(AuthState{User: user})
}

// refreshCurrent republishes state if the updated user is the one signed in.
func (s *AuthService) refreshCurrent(user *domain.User) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != user.ID {
		s.mu.Unlock()
		return
	}
	s.current = user
	s.mu.Unlock()
	s.publish(AuthState{User: user})
}

func (s *AuthService) publish(state AuthState) {
	select {
	case s.states <- state:
	default:
		if s.logger != nil {
			s.logger.Warn("auth state queue full, dropping transition")
		}
	}
}

// Close releases the sign-in rate limiter.
func (s *AuthService) Close() {
	s.limiter.Stop()
}
