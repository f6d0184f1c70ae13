package backend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Resource tracks one in-flight upstream call or SSE stream (spec §3 ConnectionResource).
// Dispose is safe to call more than once; only the first call takes effect.
type Resource struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	disposed bool
	onClose  func()
}

// ResourceSet is the active-set a Client owns exclusively, used to await graceful shutdown.
type ResourceSet struct {
	mu        sync.Mutex
	resources map[string]*Resource
}

// NewResourceSet constructs an empty, ready-to-use set.
func NewResourceSet() *ResourceSet {
	return &ResourceSet{resources: make(map[string]*Resource)}
}

// Track registers a new Resource and returns it; onClose (optional) runs exactly once, the
// first time Dispose is called.
func (s *ResourceSet) Track(onClose func()) *Resource {
	r := &Resource{ID: uuid.NewString(), CreatedAt: time.Now(), onClose: onClose}
	s.mu.Lock()
	s.resources[r.ID] = r
	s.mu.Unlock()
	return r
}

// Dispose marks r disposed exactly once, runs its onClose callback, and removes it from the
// set.
func (s *ResourceSet) Dispose(r *Resource) {
	r.mu.Lock()
	alreadyDisposed := r.disposed
	r.disposed = true
	onClose := r.onClose
	r.mu.Unlock()

	if !alreadyDisposed && onClose != nil {
		onClose()
	}

	s.mu.Lock()
	delete(s.resources, r.ID)
	s.mu.Unlock()
}

// Len reports the number of currently tracked (undisposed) resources.
func (s *ResourceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// AwaitDrain blocks until the set is empty or ctx is done, whichever comes first; callers
// typically wrap ctx with a bounded grace period (~5s per spec §4.7) before calling this on
// shutdown.
func (s *ResourceSet) AwaitDrain(ctx context.Context) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.Len() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
