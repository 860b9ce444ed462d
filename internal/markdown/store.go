package markdown

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
)

var ErrNoSnapshot = errors.New("markdown: no snapshot stored")

// Snapshot is the result of one sweep over the catalog.
type Snapshot struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Markdowns   map[int64]pricing.Markdown `json:"markdowns"`
}

// Store persists the latest snapshot. Load returns ErrNoSnapshot when
// nothing was saved yet or the snapshot expired.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// MemoryStore keeps the snapshot in process. Used when no redis URL is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	cp := snap
	cp.Markdowns = make(map[int64]pricing.Markdown, len(snap.Markdowns))
	for id, md := range snap.Markdowns {
		cp.Markdowns[id] = md
	}

	m.mu.Lock()
	m.snap = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, ErrNoSnapshot
	}
	snap := *m.snap
	return &snap, nil
}
