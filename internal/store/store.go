// Package store implements the embedded document platform backing the
// catalog: named collections of JSON documents in a Badger database, with
// change events emitted for live subscriptions.
package store

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/libroteca/libroteca/internal/domain"
	domainerrors "github.com/libroteca/libroteca/internal/errors"
	"github.com/libroteca/libroteca/internal/live"
	"github.com/libroteca/libroteca/internal/normalize"
)

// Collection names. Documents live under "<collection>:<id>" keys;
// secondary indexes under "<collection>:idx:<name>:<value>".
const (
	CollectionUsers     = "users"
	CollectionAuthors   = "authors"
	CollectionBooks     = "books"
	CollectionFavorites = "favorites"
	CollectionComments  = "comments"
)

// Sentinel errors shared with the rest of the application.
var (
	ErrNotFound      = domainerrors.ErrNotFound
	ErrAlreadyExists = domainerrors.ErrAlreadyExists
)

// EventEmitter is the interface for emitting collection change events.
// Store uses this to broadcast changes without depending on the live
// manager's implementation details.
type EventEmitter interface {
	Emit(event live.Event)
}

// NoopEmitter is a no-op implementation of EventEmitter for tests and tools.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ live.Event) {}

// NewNoopEmitter creates a new no-op emitter.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Store wraps a Badger database instance and exposes the catalog collections.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	emitter EventEmitter

	Users     *Entity[domain.User]
	Authors   *Entity[domain.Author]
	Books     *Entity[domain.Book]
	Favorites *Entity[domain.Favorite]
	Comments  *Entity[domain.Comment]
}

// New creates a new Store instance with the given database path and event
// emitter. The emitter is required and receives every collection change.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Sync writes to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:      db,
		logger:  logger,
		emitter: emitter,
	}

	store.Users = NewEntity[domain.User](store, CollectionUsers).
		WithIndexTransform("email",
			func(u *domain.User) []string { return []string{u.Email} },
			normalize.Email)
	store.Authors = NewEntity[domain.Author](store, CollectionAuthors)
	store.Books = NewEntity[domain.Book](store, CollectionBooks)
	store.Favorites = NewEntity[domain.Favorite](store, CollectionFavorites)
	store.Comments = NewEntity[domain.Comment](store, CollectionComments)

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// emit broadcasts a collection change.
func (s *Store) emit(collection string, change live.ChangeType, documentID string) {
	s.emitter.Emit(live.NewEvent(collection, change, documentID))
}

// Query returns the current ordered set of raw documents in a collection,
// optionally restricted to those whose filter field equals the filter
// value. This is the snapshot source for live subscriptions. Documents are
// ordered by identifier, which is stable across deliveries.
func (s *Store) Query(ctx context.Context, collection string, filter *live.Filter) ([]live.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := collection + ":"
	var docs []live.Document

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			docID := key[len(prefix):]

			// Skip index keys.
			if strings.HasPrefix(docID, "idx:") {
				continue
			}

			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to copy value for %s: %w", key, err)
			}

			if filter != nil {
				match, err := matchesFilter(data, filter)
				if err != nil {
					return fmt.Errorf("failed to evaluate filter for %s: %w", key, err)
				}
				if !match {
					continue
				}
			}

			docs = append(docs, live.Document{ID: docID, Data: jsontext.Value(data)})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// matchesFilter reports whether a document's named field equals the filter
// value. Only string fields participate in filters; the catalog filters on
// identifier fields exclusively.
func matchesFilter(data []byte, filter *live.Filter) (bool, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}

	value, ok := fields[filter.Field].(string)
	return ok && value == filter.Value, nil
}
