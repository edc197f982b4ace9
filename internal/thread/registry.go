// registry.go — explicit thread-id → manager registry.
//
// One manager per thread id is a hard precondition for the reconciliation
// engine, so the registry owns creation and disposal instead of a lazy
// global cache.
package thread

import (
	"context"
	"sync"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
	pkgerr "github.com/comppolicylab/pingpong-sub002/pkg/errors"
)

// Registry owns the live managers.
type Registry struct {
	mu       sync.Mutex
	managers map[string]*Manager
	backend  Backend
	opts     Options
}

// NewRegistry creates an empty registry whose managers share one backend
// and option set.
func NewRegistry(backend Backend, opts Options) *Registry {
	return &Registry{
		managers: make(map[string]*Manager),
		backend:  backend,
		opts:     opts,
	}
}

// Create builds and registers a manager for threadID. It fails when one
// already exists.
func (r *Registry) Create(threadID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.managers[threadID]; exists {
		return nil, pkgerr.Newf("Registry.Create", "manager for thread %s already exists", threadID)
	}
	m := NewManager(threadID, r.backend, r.opts)
	r.managers[threadID] = m
	return m, nil
}

// Get returns the manager for threadID.
func (r *Registry) Get(threadID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[threadID]
	if !ok {
		return nil, pkgerr.Wrapf(pkgerr.ErrNotFound, "Registry.Get", "thread %s", threadID)
	}
	return m, nil
}

// Open returns the existing manager for threadID or creates one seeded
// from the backend (initial history page plus run status).
func (r *Registry) Open(ctx context.Context, threadID string) (*Manager, error) {
	r.mu.Lock()
	if m, ok := r.managers[threadID]; ok {
		r.mu.Unlock()
		return m, nil
	}
	m := NewManager(threadID, r.backend, r.opts)
	r.managers[threadID] = m
	r.mu.Unlock()

	page, err := r.backend.FetchHistory(ctx, threadID, m.limit, "")
	if err != nil {
		r.Dispose(threadID)
		return nil, pkgerr.Wrap(err, "Registry.Open", "fetch initial history")
	}
	status, err := r.backend.FetchRunStatus(ctx, threadID)
	if err != nil {
		// A thread may have no run yet; seed with history only.
		status = model.ThreadStatus{ThreadID: threadID}
	}
	m.Seed(page, status)
	return m, nil
}

// Dispose closes and removes the manager for threadID. Unknown ids are a
// no-op.
func (r *Registry) Dispose(threadID string) {
	r.mu.Lock()
	m, ok := r.managers[threadID]
	if ok {
		delete(r.managers, threadID)
	}
	r.mu.Unlock()
	if ok {
		m.Close()
	}
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
