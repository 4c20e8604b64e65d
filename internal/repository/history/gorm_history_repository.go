// File: internal/repository/history/gorm_history_repository.go
package history

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunahq/luna/internal/domain"
)

// HistoryRecord is the gorm model backing the identity-keyed store. The whole
// ChatHistory is serialized into Data so each save is one atomic row write.
type HistoryRecord struct {
	Key       string `gorm:"primarykey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

type gormHistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

func (r *gormHistoryRepository) Load(ctx context.Context, key string) (*domain.ChatHistory, error) {
	if key == "" {
		return nil, errors.New("invalid history key")
	}

	var record HistoryRecord
	err := r.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[HistoryRepository] Database error loading history for key %q: %v", key, err)
		return nil, errors.New("database error loading history")
	}

	var h domain.ChatHistory
	if err := json.Unmarshal(record.Data, &h); err != nil {
		// A corrupt record is treated as absent rather than poisoning the
		// caller; the next save will overwrite it.
		log.Printf("[HistoryRepository] Discarding corrupt history record for key %q: %v", key, err)
		return nil, nil
	}
	if h.Sessions == nil {
		h.Sessions = map[string]*domain.ChatSession{}
	}
	return &h, nil
}

func (r *gormHistoryRepository) Save(ctx context.Context, key string, h *domain.ChatHistory) error {
	if key == "" {
		return errors.New("invalid history key")
	}
	if h == nil {
		return errors.New("history cannot be nil")
	}

	data, err := json.Marshal(h)
	if err != nil {
		return errors.New("could not serialize history")
	}

	record := HistoryRecord{Key: key, Data: data}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		log.Printf("[HistoryRepository] Database error saving history for key %q: %v", key, err)
		return errors.New("database error saving history")
	}
	return nil
}

func (r *gormHistoryRepository) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("invalid history key")
	}
	if err := r.db.WithContext(ctx).Delete(&HistoryRecord{}, "key = ?", key).Error; err != nil {
		log.Printf("[HistoryRepository] Database error deleting history for key %q: %v", key, err)
		return errors.New("database error deleting history")
	}
	return nil
}
