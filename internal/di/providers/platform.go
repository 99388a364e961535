package providers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/samber/do/v2"

	"github.com/libroteca/libroteca/internal/config"
	"github.com/libroteca/libroteca/internal/live"
	"github.com/libroteca/libroteca/internal/logger"
	"github.com/libroteca/libroteca/internal/store"
)

// LiveManagerHandle wraps the live manager with its context for lifecycle
// management.
type LiveManagerHandle struct {
	*live.Manager
	querier *deferredQuerier
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable. The dispatch context is canceled
// before draining so the loop does not contend with the drain goroutine.
func (h *LiveManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// SetQuerier completes the platform loop once the store exists.
func (h *LiveManagerHandle) SetQuerier(q live.Querier) {
	h.querier.set(q)
}

// deferredQuerier lets the manager be constructed before the store, which
// needs the manager as its event emitter. The store fills the seam through
// SetQuerier in its own provider.
type deferredQuerier struct {
	mu sync.RWMutex
	q  live.Querier
}

func (d *deferredQuerier) set(q live.Querier) {
	d.mu.Lock()
	d.q = q
	d.mu.Unlock()
}

func (d *deferredQuerier) Query(ctx context.Context, collection string, filter *live.Filter) ([]live.Document, error) {
	d.mu.RLock()
	q := d.q
	d.mu.RUnlock()
	if q == nil {
		return nil, errors.New("live querier not wired yet")
	}
	return q.Query(ctx, collection, filter)
}

// ProvideLiveManager provides the live subscription manager.
func ProvideLiveManager(i do.Injector) (*LiveManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	querier := &deferredQuerier{}
	manager := live.NewManager(querier, log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("Live manager started")

	return &LiveManagerHandle{
		Manager: manager,
		querier: querier,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the document store wired to the live manager.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	liveHandle := do.MustInvoke[*LiveManagerHandle](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger, liveHandle.Manager)
	if err != nil {
		return nil, err
	}

	log.Info("Document store initialized", "path", dbPath)

	// Close the querier loop: the manager re-evaluates subscriptions
	// against the store that emits into it.
	liveHandle.SetQuerier(db)

	return &StoreHandle{Store: db}, nil
}
