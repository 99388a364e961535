package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/libroteca/libroteca/internal/domain"
	"github.com/libroteca/libroteca/internal/live"
	"github.com/libroteca/libroteca/internal/service"
	"github.com/libroteca/libroteca/internal/store"
)

// FavoriteView tracks the signed-in user's favorites. It follows the session
// tracker: signing in opens a favorites subscription filtered to that user,
// signing out drops it. While signed out every book reads as not favorited
// and toggling does nothing.
type FavoriteView struct {
	manager  *live.Manager
	favorites *service.FavoriteService
	session  *SessionTracker
	logger   *slog.Logger

	mu     sync.RWMutex
	userID string
	sub    *Subscriber[domain.Favorite]

	unlisten  func()
	closeOnce sync.Once
}

// NewFavoriteView builds a favorite view bound to the session tracker.
func NewFavoriteView(ctx context.Context, manager *live.Manager, favorites *service.FavoriteService, session *SessionTracker, logger *slog.Logger) *FavoriteView {
	v := &FavoriteView{
		manager:   manager,
		favorites: favorites,
		session:   session,
		logger:    logger,
	}
	v.unlisten = session.Listen(func(user *domain.User) {
		v.follow(ctx, user)
	})
	return v
}

// follow swaps the favorites subscription to match the signed-in user.
func (v *FavoriteView) follow(ctx context.Context, user *domain.User) {
	userID := ""
	if user != nil {
		userID = user.ID
	}

	v.mu.Lock()
	if v.userID == userID {
		v.mu.Unlock()
		return
	}
	old := v.sub
	v.userID = userID
	v.sub = nil
	v.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if userID == "" {
		return
	}

	sub, err := Subscribe[domain.Favorite](ctx, v.manager, store.CollectionFavorites, &live.Filter{Field: "user_id", Value: userID}, v.logger)
	if err != nil {
		// Surface as signed-out favorites until the next session change.
		if v.logger != nil {
			v.logger.Error("failed to subscribe to favorites",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		}
		return
	}

	v.mu.Lock()
	if v.userID != userID {
		// Session moved on while we were subscribing.
		v.mu.Unlock()
		sub.Close()
		return
	}
	v.sub = sub
	v.mu.Unlock()
}

// IsFavorite reports whether the current snapshot contains a favorite for
// the book. Always false while signed out.
func (v *FavoriteView) IsFavorite(bookID string) bool {
	v.mu.RLock()
	sub := v.sub
	v.mu.RUnlock()

	if sub == nil {
		return false
	}
	for _, rec := range sub.Items() {
		if rec.Value.BookID == bookID {
			return true
		}
	}
	return false
}

// Toggle flips the favorite state of a book for the signed-in user. A
// signed-out toggle is a no-op and reports not-favorited. The updated state
// reaches IsFavorite through the next snapshot.
func (v *FavoriteView) Toggle(ctx context.Context, bookID string) (bool, error) {
	user := v.session.Current()
	if user == nil {
		return false, nil
	}
	return v.favorites.Toggle(ctx, user.ID, bookID)
}

// Listen registers a callback invoked whenever the favorites snapshot
// changes. The registration only covers the current subscription; callers
// typically re-register on session changes.
func (v *FavoriteView) Listen(fn func()) func() {
	v.mu.RLock()
	sub := v.sub
	v.mu.RUnlock()

	if sub == nil {
		return func() {}
	}
	return sub.Listen(fn)
}

// Close stops following the session and releases any open subscription.
func (v *FavoriteView) Close() {
	v.closeOnce.Do(func() {
		v.unlisten()
		v.mu.Lock()
		sub := v.sub
		v.sub = nil
		v.userID = ""
		v.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
	})
}
