package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// MemoryStore implements Store in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	wagers map[string]*types.Wager
	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("memory-storage-initialized")
	return &MemoryStore{
		wagers: make(map[string]*types.Wager),
		logger: logger,
	}
}

// SaveWager stores a copy of w.
func (m *MemoryStore) SaveWager(ctx context.Context, w *types.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wagers[w.ID] = w.Clone()
	StorageOperationsTotal.WithLabelValues("memory", "save").Inc()
	return nil
}

// GetWager returns a copy of the wager at id.
func (m *MemoryStore) GetWager(ctx context.Context, id string) (*types.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	StorageOperationsTotal.WithLabelValues("memory", "get").Inc()
	w, ok := m.wagers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w.Clone(), nil
}

// LoadPending returns copies of all pending wagers.
func (m *MemoryStore) LoadPending(ctx context.Context) ([]*types.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := make([]*types.Wager, 0)
	for _, w := range m.wagers {
		if w.Status == types.StatusPending {
			pending = append(pending, w.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Sequence < pending[j].Sequence
	})
	return pending, nil
}

// MaxSequence returns the highest stored sequence.
func (m *MemoryStore) MaxSequence(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var maxSeq uint64
	for _, w := range m.wagers {
		if w.Sequence > maxSeq {
			maxSeq = w.Sequence
		}
	}
	return maxSeq, nil
}

// Close is a no-op for memory storage.
func (m *MemoryStore) Close() error {
	m.logger.Info("closing-memory-storage")
	return nil
}
