package catalog_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libroteca/libroteca/internal/auth"
	"github.com/libroteca/libroteca/internal/catalog"
	"github.com/libroteca/libroteca/internal/domain"
	"github.com/libroteca/libroteca/internal/live"
	"github.com/libroteca/libroteca/internal/logger"
	"github.com/libroteca/libroteca/internal/service"
	"github.com/libroteca/libroteca/internal/store"
)

// testApp boots the embedded platform and services the way the container
// does, for end-to-end reactive-layer tests.
type testApp struct {
	Store     *store.Store
	Manager   *live.Manager
	Auth      *service.AuthService
	Library   *service.LibraryService
	Favorites *service.FavoriteService
	Comments  *service.CommentService
	Session   *catalog.SessionTracker
}

type lateQuerier struct {
	s *store.Store
}

func (q *lateQuerier) Query(ctx context.Context, collection string, filter *live.Filter) ([]live.Document, error) {
	return q.s.Query(ctx, collection, filter)
}

func setupApp(t *testing.T) (*testApp, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "catalog-test-*")
	require.NoError(t, err)

	log := logger.Discard().Logger

	querier := &lateQuerier{}
	manager := live.NewManager(querier, log)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, manager)
	require.NoError(t, err)
	querier.s = s

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{0x42}, 32), time.Hour)
	require.NoError(t, err)

	authService := service.NewAuthService(s, tokens, 1000, log)
	session := catalog.NewSessionTracker(authService.States())

	app := &testApp{
		Store:     s,
		Manager:   manager,
		Auth:      authService,
		Library:   service.NewLibraryService(s, log),
		Favorites: service.NewFavoriteService(s, log),
		Comments:  service.NewCommentService(s, log),
		Session:   session,
	}

	cleanup := func() {
		session.Close()
		authService.Close()
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = manager.Shutdown(shutdownCtx)
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return app, cleanup
}

// signIn signs into an account, registering it first if needed, and waits
// until the session tracker reports it.
func (app *testApp) signIn(t *testing.T, email, name string) *domain.User {
	t.Helper()

	resp, err := app.Auth.SignIn(context.Background(), service.SignInRequest{
		Email:    email,
		Password: "secret1",
	})
	if err != nil {
		resp, err = app.Auth.Register(context.Background(), service.RegisterRequest{
			Email:       email,
			Password:    "secret1",
			DisplayName: name,
		})
		require.NoError(t, err)
	}

	waitFor(t, func() bool {
		current := app.Session.Current()
		return current != nil && current.ID == resp.User.ID
	}, "session tracker did not pick up sign-in")

	return resp.User
}

// signOut signs out and waits for the tracker to settle.
func (app *testApp) signOut(t *testing.T) {
	t.Helper()
	require.NoError(t, app.Auth.SignOut(context.Background()))
	waitFor(t, func() bool { return app.Session.Current() == nil },
		"session tracker did not pick up sign-out")
}

// addAuthorAndBook creates an author with one book and returns both.
func (app *testApp) addAuthorAndBook(t *testing.T, authorName, title string) (*domain.Author, *domain.Book) {
	t.Helper()
	ctx := context.Background()

	author, err := app.Library.CreateAuthor(ctx, service.AuthorRequest{
		FullName: authorName,
		ImageURL: "https://example.org/author.jpg",
	})
	require.NoError(t, err)

	book, err := app.Library.CreateBook(ctx, service.BookRequest{
		Title:       title,
		ImageURL:    "https://example.org/cover.jpg",
		Description: "A description of " + title,
		AuthorID:    author.ID,
	})
	require.NoError(t, err)

	return author, book
}

func serviceAuthorRequest(name string) service.AuthorRequest {
	return service.AuthorRequest{
		FullName: name,
		ImageURL: "https://example.org/author.jpg",
	}
}

// waitFor polls a condition until it holds or the deadline passes. Live
// updates propagate asynchronously, so assertions on reactive state settle
// through this.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
