// File: internal/repository/history/interface.go
package history

import (
	"context"

	"github.com/lunahq/luna/internal/domain"
)

// HistoryRepository is the durable storage boundary: one record per identity
// key holding the full serialized ChatHistory. Absence of a record is a valid
// initial state.
type HistoryRepository interface {
	// Load returns the stored history for key, or (nil, nil) when no record
	// exists.
	Load(ctx context.Context, key string) (*domain.ChatHistory, error)
	// Save replaces the record for key with the full serialized history in a
	// single write. A partial state is never observable.
	Save(ctx context.Context, key string, h *domain.ChatHistory) error
	// Delete removes the record for key, if any.
	Delete(ctx context.Context, key string) error
}
