package relay

import (
	"context"
	"sync"

	"github.com/alienworlds/engine/internal/persist"
)

// Store keeps player state between visits to a world.
type Store interface {
	Load(ctx context.Context, seed uint32, name string) (*persist.PlayerState, error)
	Save(ctx context.Context, p persist.PlayerState) error
	SaveAll(ctx context.Context, players []persist.PlayerState) error
}

var _ Store = (*persist.PlayerRepo)(nil)

// MemoryStore is a Store for relays running without a database.
type MemoryStore struct {
	mu      sync.Mutex
	players map[memoryKey]persist.PlayerState
}

type memoryKey struct {
	seed uint32
	name string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{players: make(map[memoryKey]persist.PlayerState)}
}

func (m *MemoryStore) Load(_ context.Context, seed uint32, name string) (*persist.PlayerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[memoryKey{seed, name}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) Save(_ context.Context, p persist.PlayerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{p.Seed, p.Name}
	p.Visits = m.players[k].Visits + 1
	m.players[k] = p
	return nil
}

func (m *MemoryStore) SaveAll(ctx context.Context, players []persist.PlayerState) error {
	for _, p := range players {
		if err := m.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
