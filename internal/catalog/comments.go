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

// CommentAggregator maintains one comment subscription per book in the
// catalog. A primary subscription on the books collection drives the set:
// every books snapshot is reconciled against the open comment subscriptions,
// opening one for each new book and closing the one of each removed book, so
// no handle outlives its book.
type CommentAggregator struct {
	ctx      context.Context
	manager  *live.Manager
	comments *service.CommentService
	session  *SessionTracker
	logger   *slog.Logger

	books *Subscriber[domain.Book]

	mu     sync.RWMutex
	byBook map[string]*Subscriber[domain.Comment]

	unlisten  func()
	closeOnce sync.Once
}

// NewCommentAggregator opens the books subscription and settles comment
// subscriptions for every book currently in the catalog.
func NewCommentAggregator(ctx context.Context, manager *live.Manager, comments *service.CommentService, session *SessionTracker, logger *slog.Logger) (*CommentAggregator, error) {
	books, err := Subscribe[domain.Book](ctx, manager, store.CollectionBooks, nil, logger)
	if err != nil {
		return nil, err
	}

	a := &CommentAggregator{
		ctx:      ctx,
		manager:  manager,
		comments: comments,
		session:  session,
		logger:   logger,
		books:    books,
		byBook:   make(map[string]*Subscriber[domain.Comment]),
	}

	a.unlisten = books.Listen(a.reconcile)
	a.reconcile()

	return a, nil
}

// reconcile aligns the comment subscription map with the current books
// snapshot.
func (a *CommentAggregator) reconcile() {
	current := make(map[string]bool)
	for _, rec := range a.books.Items() {
		current[rec.ID] = true
	}

	var toClose []*Subscriber[domain.Comment]
	var toOpen []string

	a.mu.Lock()
	for bookID, sub := range a.byBook {
		if !current[bookID] {
			toClose = append(toClose, sub)
			delete(a.byBook, bookID)
		}
	}
	for bookID := range current {
		if _, ok := a.byBook[bookID]; !ok {
			toOpen = append(toOpen, bookID)
		}
	}
	a.mu.Unlock()

	for _, sub := range toClose {
		sub.Close()
	}

	for _, bookID := range toOpen {
		sub, err := Subscribe[domain.Comment](a.ctx, a.manager, store.CollectionComments, &live.Filter{Field: "book_id", Value: bookID}, a.logger)
		if err != nil {
			if a.logger != nil {
				a.logger.Error("failed to subscribe to comments",
					slog.String("book_id", bookID),
					slog.String("error", err.Error()))
			}
			continue
		}

		a.mu.Lock()
		if _, exists := a.byBook[bookID]; exists || !a.stillListed(bookID) {
			// A concurrent reconcile beat us to it, or the book is
			// already gone again.
			a.mu.Unlock()
			sub.Close()
			continue
		}
		a.byBook[bookID] = sub
		a.mu.Unlock()
	}
}

// stillListed reports whether the book is in the latest books snapshot.
// Callers hold a.mu.
func (a *CommentAggregator) stillListed(bookID string) bool {
	for _, rec := range a.books.Items() {
		if rec.ID == bookID {
			return true
		}
	}
	return false
}

// CommentsFor returns the book's comments in snapshot order. An unknown
// book yields an empty list.
func (a *CommentAggregator) CommentsFor(bookID string) []Record[domain.Comment] {
	a.mu.RLock()
	sub := a.byBook[bookID]
	a.mu.RUnlock()

	if sub == nil {
		return nil
	}
	return sub.Items()
}

// CountFor returns the number of comments currently on the book.
func (a *CommentAggregator) CountFor(bookID string) int {
	return len(a.CommentsFor(bookID))
}

// TrackedBooks returns the IDs of books with an open comment subscription.
func (a *CommentAggregator) TrackedBooks() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.byBook))
	for bookID := range a.byBook {
		ids = append(ids, bookID)
	}
	return ids
}

// Add posts a comment on a book as the signed-in user. The stored author
// name is resolved from the user's profile at write time.
func (a *CommentAggregator) Add(ctx context.Context, bookID, text string) (*domain.Comment, error) {
	userID := ""
	if user := a.session.Current(); user != nil {
		userID = user.ID
	}
	return a.comments.Add(ctx, userID, bookID, service.CommentRequest{Text: text})
}

// Edit replaces a comment's text. The service rejects edits by anyone but
// the comment's author.
func (a *CommentAggregator) Edit(ctx context.Context, commentID, text string) (*domain.Comment, error) {
	userID := ""
	if user := a.session.Current(); user != nil {
		userID = user.ID
	}
	return a.comments.Edit(ctx, userID, commentID, service.CommentRequest{Text: text})
}

// Delete removes a comment. Author-only, like Edit.
func (a *CommentAggregator) Delete(ctx context.Context, commentID string) error {
	userID := ""
	if user := a.session.Current(); user != nil {
		userID = user.ID
	}
	return a.comments.Delete(ctx, userID, commentID)
}

// CanEdit reports whether the signed-in user wrote the comment. Views use
// this to show or hide the edit and delete controls; the service enforces
// the same rule on the write path.
func (a *CommentAggregator) CanEdit(comment *domain.Comment) bool {
	user := a.session.Current()
	return user != nil && comment != nil && comment.UserID == user.ID
}

// Close releases the books subscription and every comment subscription.
func (a *CommentAggregator) Close() {
	a.closeOnce.Do(func() {
		a.unlisten()
		a.books.Close()

		a.mu.Lock()
		subs := make([]*Subscriber[domain.Comment], 0, len(a.byBook))
		for _, sub := range a.byBook {
			subs = append(subs, sub)
		}
		a.byBook = make(map[string]*Subscriber[domain.Comment])
		a.mu.Unlock()

		for _, sub := range subs {
			sub.Close()
		}
	})
}
