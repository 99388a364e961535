package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libroteca/libroteca/internal/domain"
	"github.com/libroteca/libroteca/internal/live"
	"github.com/libroteca/libroteca/internal/store"
)

// recordingEmitter captures change events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []live.Event
}

func (r *recordingEmitter) Emit(event live.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []live.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]live.Event, len(r.events))
	copy(out, r.events)
	return out
}

func setupTestStore(t *testing.T) (*store.Store, *recordingEmitter, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil, emitter)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, emitter, cleanup
}

func newTestUser(id, email, name string) *domain.User {
	user := &domain.User{
		Meta:         domain.Meta{ID: id},
		Email:        email,
		PasswordHash: "hashed",
		DisplayName:  name,
	}
	user.InitTimestamps()
	return user
}

func TestEntity_CreateAndGet(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	author := &domain.Author{
		Meta:     domain.Meta{ID: "author-1"},
		FullName: "Gabriel García Márquez",
		ImageURL: "https://example.org/ggm.jpg",
	}
	author.InitTimestamps()

	err := s.Authors.Create(ctx, author.ID, author)
	require.NoError(t, err)

	retrieved, err := s.Authors.Get(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, author.ID, retrieved.ID)
	assert.Equal(t, author.FullName, retrieved.FullName)
	assert.Equal(t, author.ImageURL, retrieved.ImageURL)
}

func TestEntity_Create_DuplicateID(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "test@example.com", "Test User")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	dup := newTestUser("user-1", "other@example.com", "Other User")
	err := s.Users.Create(ctx, dup.ID, dup)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_Create_DuplicateEmail(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "test@example.com", "Test User")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	// Same email modulo case still conflicts through the normalized index.
	dup := newTestUser("user-2", "TEST@Example.com", "Other User")
	err := s.Users.Create(ctx, dup.ID, dup)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_Get_NotFound(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.Books.Get(context.Background(), "book-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_GetByIndex_NormalizedLookup(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "ana@example.org", "Ana")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	retrieved, err := s.Users.GetByIndex(ctx, "email", "  ANA@example.org ")
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.ID)

	_, err = s.Users.GetByIndex(ctx, "email", "nobody@example.org")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Update(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "ana@example.org", "Ana")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	user.DisplayName = "Ana María"
	user.Touch()
	require.NoError(t, s.Users.Update(ctx, user.ID, user))

	retrieved, err := s.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana María", retrieved.DisplayName)
}

func TestEntity_Update_ReindexesEmail(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "old@example.org", "Ana")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	user.Email = "new@example.org"
	require.NoError(t, s.Users.Update(ctx, user.ID, user))

	// New address resolves, old one is gone.
	retrieved, err := s.Users.GetByIndex(ctx, "email", "new@example.org")
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.ID)

	_, err = s.Users.GetByIndex(ctx, "email", "old@example.org")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The freed address can be taken by someone else.
	other := newTestUser("user-2", "old@example.org", "Luis")
	assert.NoError(t, s.Users.Create(ctx, other.ID, other))
}

func TestEntity_Update_NotFound(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	user := newTestUser("user-missing", "x@example.org", "X")
	err := s.Users.Update(context.Background(), user.ID, user)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Delete_Idempotent(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	user := newTestUser("user-1", "ana@example.org", "Ana")
	require.NoError(t, s.Users.Create(ctx, user.ID, user))

	require.NoError(t, s.Users.Delete(ctx, user.ID))
	_, err := s.Users.Get(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is not an error.
	assert.NoError(t, s.Users.Delete(ctx, user.ID))

	// Index entry is gone too.
	_, err = s.Users.GetByIndex(ctx, "email", "ana@example.org")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_List_SkipsIndexKeysAndOrders(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for _, id := range []string{"user-c", "user-a", "user-b"} {
		user := newTestUser(id, id+"@example.org", "User "+id)
		require.NoError(t, s.Users.Create(ctx, user.ID, user))
	}

	var ids []string
	for user, err := range s.Users.List(ctx) {
		require.NoError(t, err)
		ids = append(ids, user.ID)
	}
	assert.Equal(t, []string{"user-a", "user-b", "user-c"}, ids)
}

func TestEntity_EmitsChangeEvents(t *testing.T) {
	s, emitter, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	book := &domain.Book{
		Meta:     domain.Meta{ID: "book-1"},
		Title:    "Ficciones",
		AuthorID: "author-1",
	}
	book.InitTimestamps()

	require.NoError(t, s.Books.Create(ctx, book.ID, book))
	book.Description = "Labyrinths"
	require.NoError(t, s.Books.Update(ctx, book.ID, book))
	require.NoError(t, s.Books.Delete(ctx, book.ID))

	// Deleting a missing document emits nothing.
	require.NoError(t, s.Books.Delete(ctx, "book-missing"))

	events := emitter.Events()
	require.Len(t, events, 3)
	assert.Equal(t, live.ChangeCreated, events[0].Type)
	assert.Equal(t, live.ChangeUpdated, events[1].Type)
	assert.Equal(t, live.ChangeDeleted, events[2].Type)
	for _, ev := range events {
		assert.Equal(t, store.CollectionBooks, ev.Collection)
		assert.Equal(t, "book-1", ev.DocumentID)
	}
}

func TestStore_Query_FilterAndOrder(t *testing.T) {
	s, _, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for i, pair := range []struct{ id, userID, bookID string }{
		{"fav-b", "user-1", "book-1"},
		{"fav-a", "user-1", "book-2"},
		{"fav-c", "user-2", "book-1"},
	} {
		fav := &domain.Favorite{
			Meta:   domain.Meta{ID: pair.id},
			UserID: pair.userID,
			BookID: pair.bookID,
		}
		fav.InitTimestamps()
		require.NoError(t, s.Favorites.Create(ctx, pair.id, fav), "favorite %d", i)
	}

	docs, err := s.Query(ctx, store.CollectionFavorites, &live.Filter{Field: "user_id", Value: "user-1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "fav-a", docs[0].ID)
	assert.Equal(t, "fav-b", docs[1].ID)

	all, err := s.Query(ctx, store.CollectionFavorites, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
