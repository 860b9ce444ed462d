package checkout

import (
	"sync"
	"time"
)

// Registry holds carts in memory by id. Carts do not survive a restart.
type Registry struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*Cart)}
}

func (r *Registry) Put(c *Cart) {
	r.mu.Lock()
	r.carts[c.id] = c
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Cart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}

// Prune drops completed and abandoned carts last touched before cutoff and
// returns how many were removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.carts {
		c.mu.Lock()
		closed := c.status == StatusCompleted || c.status == StatusAbandoned
		stale := c.updatedAt.Before(cutoff)
		c.mu.Unlock()
		if closed && stale {
			delete(r.carts, id)
			removed++
		}
	}
	return removed
}
