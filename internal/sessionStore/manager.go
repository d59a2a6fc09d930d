package sessionStore

import (
	"context"
	"sync"
)

// Manager hands out one Store per chat. Stores are created lazily; the
// persisted identity (if any) is loaded synchronously before the store is
// returned, so the signed-in check is stable from the first use.
type Manager struct {
	persister Persister

	mu     sync.Mutex
	stores map[int64]*Store
}

func NewManager(persister Persister) *Manager {
	return &Manager{
		persister: persister,
		stores:    make(map[int64]*Store),
	}
}

func (m *Manager) Store(ctx context.Context, chatID int64) *Store {
	m.mu.Lock()
	store, ok := m.stores[chatID]
	m.mu.Unlock()
	if ok {
		return store
	}

	// load outside the manager lock, another goroutine may race for the same
	// chat; the first registered store wins
	store = NewStore(chatID, m.persister)
	store.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.stores[chatID]; ok {
		return existing
	}
	m.stores[chatID] = store
	return store
}

// Snapshot returns the stores known so far. Used by background jobs that
// refresh every active chat.
func (m *Manager) Snapshot() []*Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]*Store, 0, len(m.stores))
	for _, store := range m.stores {
		res = append(res, store)
	}
	return res
}
