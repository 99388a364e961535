package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/libroteca/libroteca/internal/id"
)

// Subscription is a live query handle. Snapshots arrive on Snapshots();
// the caller must Close() the subscription when the owning view goes away.
type Subscription struct {
	ID         string
	Collection string
	Filter     *Filter

	snapshots chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
	manager   *Manager
}

// Snapshots returns the channel on which full snapshots are delivered.
// The channel is closed when the subscription is closed or the manager
// shuts down.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.manager.remove(s.ID)
	})
}

// Manager tracks subscriptions and re-evaluates them on collection changes.
// It is the delivery half of the embedded platform: the store emits change
// events into it, and it pushes fresh snapshots to every affected
// subscription.
type Manager struct {
	querier Querier
	logger  *slog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription

	events chan Event
	wg     sync.WaitGroup

	// Shutdown state - protected by shutdownMu.
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new subscription manager backed by the given querier.
func NewManager(querier Querier, logger *slog.Logger) *Manager {
	return &Manager{
		querier: querier,
		logger:  logger,
		subs:    make(map[string]*Subscription),
		events:  make(chan Event, 1000),
	}
}

// Start begins the dispatch loop. This should be called once at
// application startup in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("live manager starting")

	for {
		select {
		case event := <-m.events:
			m.dispatch(ctx, event)

		case <-ctx.Done():
			m.logger.Info("live manager stopping")
			m.closeAll()
			return
		}
	}
}

// Emit queues a change event for dispatch. Called by the store after every
// successful mutation. Events emitted after shutdown are silently dropped.
func (m *Manager) Emit(event Event) {
	// Hold read lock through the entire send operation.
	// This prevents a race with Shutdown() which holds the write lock
	// when closing the channel.
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Warn("event queue full, dropping change event",
			slog.String("collection", event.Collection),
			slog.String("document_id", event.DocumentID))
	}
}

// Subscribe opens a live subscription on a collection with an optional
// field-equality filter. The initial snapshot is delivered immediately;
// afterwards a fresh snapshot arrives on every change to the collection.
// Subscriptions to the same collection are independent and never deduplicated.
func (m *Manager) Subscribe(ctx context.Context, collection string, filter *Filter) (*Subscription, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:         subID,
		Collection: collection,
		Filter:     filter,
		snapshots:  make(chan Snapshot, 1),
		done:       make(chan struct{}),
		manager:    m,
	}

	// Query, register, and deliver the initial snapshot in one critical
	// section. Dispatch needs the read lock, so a write that commits while
	// the query runs is re-queried and delivered right after registration
	// instead of falling between the query and the registry insert.
	m.mu.Lock()
	docs, err := m.querier.Query(ctx, collection, filter)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.subs[subID] = sub
	sub.snapshots <- Snapshot{At: time.Now(), Docs: docs}
	m.mu.Unlock()

	m.logger.Debug("subscription opened",
		slog.String("subscription_id", subID),
		slog.String("collection", collection))

	return sub, nil
}

// dispatch refreshes every subscription watching the event's collection.
// The read lock is held through delivery so remove() cannot close a snapshot
// channel mid-send.
func (m *Manager) dispatch(ctx context.Context, event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if sub.Collection != event.Collection {
			continue
		}
		docs, err := m.querier.Query(ctx, sub.Collection, sub.Filter)
		if err != nil {
			m.logger.Error("subscription query failed",
				slog.String("subscription_id", sub.ID),
				slog.String("collection", sub.Collection),
				slog.String("error", err.Error()))
			continue
		}
		m.deliver(sub, Snapshot{At: time.Now(), Docs: docs})
	}
}

// deliver pushes a snapshot, replacing any undelivered one. Snapshots are
// full states, so a slow subscriber only ever needs the latest.
func (m *Manager) deliver(sub *Subscription, snap Snapshot) {
	select {
	case <-sub.done:
		return
	default:
	}

	for {
		select {
		case sub.snapshots <- snap:
			return
		default:
			// Channel full: discard the stale snapshot and retry.
			select {
			case <-sub.snapshots:
			default:
			}
		}
	}
}

// remove deregisters a subscription and closes its snapshot channel. The
// close happens behind the write lock, serialized against dispatch sends.
func (m *Manager) remove(subID string) {
	m.mu.Lock()
	sub, ok := m.subs[subID]
	if ok {
		delete(m.subs, subID)
		close(sub.snapshots)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Debug("subscription closed",
			slog.String("subscription_id", subID),
			slog.String("collection", sub.Collection))
	}
}

// closeAll tears down every open subscription.
func (m *Manager) closeAll() {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Shutdown gracefully shuts down the manager. It stops accepting new
// events, drains the queue, and closes all subscriptions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("live manager shutdown initiated")

	// Mark as shutdown AND close the channel atomically while holding the
	// lock, so Emit() can't race the close.
	m.shutdownMu.Lock()
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.dispatch(ctx, event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("live event drain timeout, some snapshots may be lost")
	}

	m.wg.Wait()
	m.closeAll()

	m.logger.Info("live manager shutdown complete")
	return nil
}
