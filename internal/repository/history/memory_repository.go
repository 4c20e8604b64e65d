// File: internal/repository/history/memory_repository.go
package history

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lunahq/luna/internal/domain"
)

// memoryHistoryRepository keeps serialized records in a map. It backs tests
// and ephemeral deployments where no database path is configured.
type memoryHistoryRepository struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryHistoryRepository() HistoryRepository {
	return &memoryHistoryRepository{records: map[string][]byte{}}
}

func (r *memoryHistoryRepository) Load(ctx context.Context, key string) (*domain.ChatHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	var h domain.ChatHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	if h.Sessions == nil {
		h.Sessions = map[string]*domain.ChatSession{}
	}
	return &h, nil
}

func (r *memoryHistoryRepository) Save(ctx context.Context, key string, h *domain.ChatHistory) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[key] = data
	r.mu.Unlock()
	return nil
}

func (r *memoryHistoryRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	delete(r.records, key)
	r.mu.Unlock()
	return nil
}
