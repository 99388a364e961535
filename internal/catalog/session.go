// Package catalog implements the reactive layer of the application: it keeps
// view state (session, collection snapshots, joins, favorites, comments,
// forms) current by consuming live subscriptions and auth-state events, and
// routes user actions to the write services.
package catalog

import (
	"sync"

	"github.com/libroteca/libroteca/internal/domain"
	"github.com/libroteca/libroteca/internal/service"
)

// SessionTracker follows the signed-in identity. It consumes the auth
// service's state channel once and fans changes out to registered listeners.
type SessionTracker struct {
	mu        sync.RWMutex
	current   *domain.User
	listeners map[int]func(*domain.User)
	nextID    int

	done      chan struct{}
	closeOnce sync.Once
}

// NewSessionTracker starts tracking auth transitions on the given channel.
// The initial state is signed out until the first event arrives.
func NewSessionTracker(states <-chan service.AuthState) *SessionTracker {
	t := &SessionTracker{
		listeners: make(map[int]func(*domain.User)),
		done:      make(chan struct{}),
	}

	go func() {
		for {
			select {
			case state, ok := <-states:
				if !ok {
					return
				}
				select {
				case <-t.done:
					return
				default:
				}
				t.set(state.User)
			case <-t.done:
				return
			}
		}
	}()

	return t
}

// Current returns the signed-in user, or nil when signed out.
func (t *SessionTracker) Current() *domain.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Listen registers a callback invoked on every identity change. The callback
// also fires immediately with the current state, so late listeners settle.
// The returned function cancels the registration.
func (t *SessionTracker) Listen(fn func(*domain.User)) func() {
	t.mu.Lock()
	lid := t.nextID
	t.nextID++
	t.listeners[lid] = fn
	current := t.current
	t.mu.Unlock()

	fn(current)

	return func() {
		t.mu.Lock()
		delete(t.listeners, lid)
		t.mu.Unlock()
	}
}

// Close stops consuming auth events. Registered listeners receive no
// further calls.
func (t *SessionTracker) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		t.listeners = make(map[int]func(*domain.User))
		t.mu.Unlock()
	})
}

func (t *SessionTracker) set(user *domain.User) {
	t.mu.Lock()
	t.current = user
	fns := make([]func(*domain.User), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}
