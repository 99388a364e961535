package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroteca/libroteca/internal/auth"
	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/logger"
	"github.com/libroteca/libroteca/internal/service"
	"github.com/libroteca/libroteca/internal/store"
)

func setupServices(t *testing.T) (*store.Store, *service.AuthService, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{0x42}, 32), time.Hour)
	require.NoError(t, err)

	authService := service.NewAuthService(s, tokens, 1000, logger.Discard().Logger)

	cleanup := func() {
		authService.Close()
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, authService, cleanup
}

func register(t *testing.T, authService *service.AuthService, email, name string) *service.AuthResponse {
	t.Helper()
	resp, err := authService.Register(context.Background(), service.RegisterRequest{
		Email:       email,
		Password:    "secret1",
		DisplayName: name,
	})
	require.NoError(t, err)
	return resp
}

func TestAuthService_Register(t *testing.T) {
	s, authService, cleanup := setupServices(t)
	defer cleanup()

	resp := register(t, authService, "ana@example.org", "Ana")

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Ana", resp.User.DisplayName)
	assert.NotEmpty(t, resp.User.ID)
	assert.False(t, resp.User.CreatedAt.IsZero())

	// The profile document exists and the password is stored hashed.
	stored, err := s.Users.Get(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	// Registration signs the user in.
	current := authService.Current()
	require.NotNil(t, current)
	assert.Equal(t, resp.User.ID, current.ID)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	register(t, authService, "ana@example.org", "Ana")

	_, err := authService.Register(context.Background(), service.RegisterRequest{
		Email:       "Ana@Example.org", // same address modulo case
		Password:    "secret1",
		DisplayName: "Otra Ana",
	})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAuthService_Register_Validation(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()

	_, err := authService.Register(ctx, service.RegisterRequest{
		Email:       "not-an-email",
		Password:    "secret1",
		DisplayName: "Ana",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	// Password shorter than six characters is rejected.
	_, err = authService.Register(ctx, service.RegisterRequest{
		Email:       "ana@example.org",
		Password:    "12345",
		DisplayName: "Ana",
	})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAuthService_SignIn(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	registered := register(t, authService, "ana@example.org", "Ana")
	require.NoError(t, authService.SignOut(ctx))

	resp, err := authService.SignIn(ctx, service.SignInRequest{
		Email:    "ANA@example.org",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, resp.User.ID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.False(t, resp.User.LastLoginAt.IsZero())
}

func TestAuthService_SignIn_BadCredentials(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	register(t, authService, "ana@example.org", "Ana")

	// Unknown account and wrong password produce the same error class, so
	// a caller cannot probe which addresses exist.
	_, err := authService.SignIn(ctx, service.SignInRequest{
		Email:    "nobody@example.org",
		Password: "secret1",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = authService.SignIn(ctx, service.SignInRequest{
		Email:    "ana@example.org",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthService_SignIn_RateLimited(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	defer s.Close()

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{0x42}, 32), time.Hour)
	require.NoError(t, err)

	// Two attempts per minute.
	authService := service.NewAuthService(s, tokens, 2, logger.Discard().Logger)
	defer authService.Close()

	ctx := context.Background()
	req := service.SignInRequest{Email: "ana@example.org", Password: "wrong"}

	for range 2 {
		_, err = authService.SignIn(ctx, req)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	}

	_, err = authService.SignIn(ctx, req)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized, "third attempt hits the limiter")

	// Other addresses are unaffected.
	_, err = authService.SignIn(ctx, service.SignInRequest{Email: "luis@example.org", Password: "wrong"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthService_StatesFollowTransitions(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	states := authService.States()

	resp := register(t, authService, "ana@example.org", "Ana")

	state := <-states
	require.NotNil(t, state.User)
	assert.Equal(t, resp.User.ID, state.User.ID)

	require.NoError(t, authService.SignOut(ctx))
	state = <-states
	assert.Nil(t, state.User)
}

func TestAuthService_UpdateDisplayName(t *testing.T) {
	s, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	resp := register(t, authService, "ana@example.org", "Ana")

	updated, err := authService.UpdateDisplayName(ctx, resp.User.ID, "Ana María")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.DisplayName)

	stored, err := s.Users.Get(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana María", stored.DisplayName)

	_, err = authService.UpdateDisplayName(ctx, resp.User.ID, "")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAuthService_UpdatePassword(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	resp := register(t, authService, "ana@example.org", "Ana")

	err := authService.UpdatePassword(ctx, resp.User.ID, service.UpdatePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "brand-new",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	err = authService.UpdatePassword(ctx, resp.User.ID, service.UpdatePasswordRequest{
		CurrentPassword: "secret1",
		NewPassword:     "brand-new",
	})
	require.NoError(t, err)

	require.NoError(t, authService.SignOut(ctx))
	_, err = authService.SignIn(ctx, service.SignInRequest{
		Email:    "ana@example.org",
		Password: "brand-new",
	})
	assert.NoError(t, err)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	s, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	resp := register(t, authService, "ana@example.org", "Ana")

	// Give the account a favorite and a comment.
	favorites := service.NewFavoriteService(s, logger.Discard().Logger)
	library := service.NewLibraryService(s, logger.Discard().Logger)
	comments := service.NewCommentService(s, logger.Discard().Logger)

	author, err := library.CreateAuthor(ctx, service.AuthorRequest{FullName: "Borges"})
	require.NoError(t, err)
	book, err := library.CreateBook(ctx, service.BookRequest{Title: "Ficciones", AuthorID: author.ID})
	require.NoError(t, err)

	_, err = favorites.Toggle(ctx, resp.User.ID, book.ID)
	require.NoError(t, err)
	comment, err := comments.Add(ctx, resp.User.ID, book.ID, service.CommentRequest{Text: "Hola"})
	require.NoError(t, err)

	require.NoError(t, authService.DeleteAccount(ctx, resp.User.ID))

	// User document and favorites are gone, the comment remains with the
	// name captured at write time.
	_, err = s.Users.Get(ctx, resp.User.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	favs, err := favorites.ListForUser(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)

	kept, err := s.Comments.Get(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", kept.UserName)

	// The deletion signed the account out.
	assert.Nil(t, authService.Current())
}

func TestAuthService_VerifyAccessToken(t *testing.T) {
	_, authService, cleanup := setupServices(t)
	defer cleanup()

	ctx := context.Background()
	resp := register(t, authService, "ana@example.org", "Ana")

	user, claims, err := authService.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "ana@example.org", claims.Email)

	_, _, err = authService.VerifyAccessToken(ctx, "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// Tokens for deleted accounts stop verifying.
	require.NoError(t, authService.DeleteAccount(ctx, resp.User.ID))
	_, _, err = authService.VerifyAccessToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
