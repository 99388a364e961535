package catalog

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"sync"

	"github.com/libroteca/libroteca/internal/live"
)

// Record pairs a document ID with its decoded value, preserving snapshot
// order.
type Record[T any] struct {
	ID    string
	Value T
}

// Subscriber keeps a decoded, ordered copy of one collection query current.
// Every snapshot replaces the previous state wholesale; there is no diffing.
// Two subscribers on the same collection are fully independent.
type Subscriber[T any] struct {
	sub    *live.Subscription
	logger *slog.Logger

	mu        sync.RWMutex
	items     []Record[T]
	listeners map[int]func()
	nextID    int

	settled chan struct{}
	wg      sync.WaitGroup
}

// Subscribe opens a live subscription and starts decoding snapshots into
// Record values. It blocks until the initial snapshot has been applied, so
// Items() is meaningful as soon as Subscribe returns.
func Subscribe[T any](ctx context.Context, manager *live.Manager, collection string, filter *live.Filter, logger *slog.Logger) (*Subscriber[T], error) {
	sub, err := manager.Subscribe(ctx, collection, filter)
	if err != nil {
		return nil, err
	}

	s := &Subscriber[T]{
		sub:       sub,
		logger:    logger,
		listeners: make(map[int]func()),
		settled:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	select {
	case <-s.settled:
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	return s, nil
}

func (s *Subscriber[T]) run() {
	defer s.wg.Done()

	first := true
	for snap := range s.sub.Snapshots() {
		s.apply(snap)
		if first {
			close(s.settled)
			first = false
		}
	}
	if first {
		close(s.settled)
	}
}

func (s *Subscriber[T]) apply(snap live.Snapshot) {
	items := make([]Record[T], 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var value T
		if err := json.Unmarshal([]byte(doc.Data), &value); err != nil {
			if s.logger != nil {
				s.logger.Error("failed to decode document",
					slog.String("collection", s.sub.Collection),
					slog.String("document_id", doc.ID),
					slog.String("error", err.Error()))
			}
			continue
		}
		items = append(items, Record[T]{ID: doc.ID, Value: value})
	}

	s.mu.Lock()
	s.items = items
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Items returns a copy of the current records in snapshot order.
func (s *Subscriber[T]) Items() []Record[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record[T], len(s.items))
	copy(out, s.items)
	return out
}

// Listen registers a callback invoked after each applied snapshot. The
// returned function cancels the registration.
func (s *Subscriber[T]) Listen(fn func()) func() {
	s.mu.Lock()
	lid := s.nextID
	s.nextID++
	s.listeners[lid] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, lid)
		s.mu.Unlock()
	}
}

// Close releases the underlying subscription and waits for the decode
// goroutine to finish. Safe to call more than once.
func (s *Subscriber[T]) Close() {
	s.sub.Close()
	s.wg.Wait()
}
