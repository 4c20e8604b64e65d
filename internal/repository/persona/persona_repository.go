// File: internal/repository/persona/persona_repository.go
package persona

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lunahq/luna/internal/domain"
)

var ErrPersonaNotFound = errors.New("persona not found")

// PersonaRepository stores user-defined personas and the per-identity active
// selection.
type PersonaRepository interface {
	Create(ctx context.Context, p *domain.Persona) (*domain.Persona, error)
	Update(ctx context.Context, p *domain.Persona) error
	Delete(ctx context.Context, identity, id string) error
	FindByIdentity(ctx context.Context, identity string) ([]domain.Persona, error)
	FindByID(ctx context.Context, identity, id string) (*domain.Persona, error)

	SetActive(ctx context.Context, identity, personaID string) error
	ClearActive(ctx context.Context, identity string) error
	ActiveID(ctx context.Context, identity string) (string, error)
}

type gormPersonaRepository struct {
	db *gorm.DB
}

func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &gormPersonaRepository{db: db}
}

func (r *gormPersonaRepository) Create(ctx context.Context, p *domain.Persona) (*domain.Persona, error) {
	if p == nil || p.Identity == "" || p.Name == "" {
		return nil, errors.New("persona identity and name are required")
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		log.Printf("[PersonaRepository] Database error creating persona for %q: %v", p.Identity, err)
		return nil, errors.New("database error creating persona")
	}
	return p, nil
}

func (r *gormPersonaRepository) Update(ctx context.Context, p *domain.Persona) error {
	if p == nil || p.ID == "" {
		return errors.New("persona ID is required")
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Persona{}).
		Where("id = ? AND identity = ?", p.ID, p.Identity).
		Updates(map[string]interface{}{"name": p.Name, "prompt": p.Prompt})
	if result.Error != nil {
		log.Printf("[PersonaRepository] Database error updating persona %q: %v", p.ID, result.Error)
		return errors.New("database error updating persona")
	}
	if result.RowsAffected == 0 {
		return ErrPersonaNotFound
	}
	return nil
}

func (r *gormPersonaRepository) Delete(ctx context.Context, identity, id string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ? AND identity = ?", id, identity).
		Delete(&domain.Persona{}).Error; err != nil {
		log.Printf("[PersonaRepository] Database error deleting persona %q: %v", id, err)
		return errors.New("database error deleting persona")
	}
	return nil
}

func (r *gormPersonaRepository) FindByIdentity(ctx context.Context, identity string) ([]domain.Persona, error) {
	var personas []domain.Persona
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at ASC").
		Find(&personas).Error
	if err != nil {
		log.Printf("[PersonaRepository] Database error listing personas for %q: %v", identity, err)
		return nil, errors.New("database error listing personas")
	}
	return personas, nil
}

func (r *gormPersonaRepository) FindByID(ctx context.Context, identity, id string) (*domain.Persona, error) {
	var p domain.Persona
	err := r.db.WithContext(ctx).First(&p, "id = ? AND identity = ?", id, identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonaNotFound
	}
	if err != nil {
		log.Printf("[PersonaRepository] Database error finding persona %q: %v", id, err)
		return nil, errors.New("database query failed")
	}
	return &p, nil
}

func (r *gormPersonaRepository) SetActive(ctx context.Context, identity, personaID string) error {
	record := domain.ActivePersona{Identity: identity, PersonaID: personaID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"persona_id", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		log.Printf("[PersonaRepository] Database error setting active persona for %q: %v", identity, err)
		return errors.New("database error setting active persona")
	}
	return nil
}

func (r *gormPersonaRepository) ClearActive(ctx context.Context, identity string) error {
	if err := r.db.WithContext(ctx).
		Delete(&domain.ActivePersona{}, "identity = ?", identity).Error; err != nil {
		log.Printf("[PersonaRepository] Database error clearing active persona for %q: %v", identity, err)
		return errors.New("database error clearing active persona")
	}
	return nil
}

func (r *gormPersonaRepository) ActiveID(ctx context.Context, identity string) (string, error) {
	var record domain.ActivePersona
	err := r.db.WithContext(ctx).First(&record, "identity = ?", identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		log.Printf("[PersonaRepository] Database error reading active persona for %q: %v", identity, err)
		return "", errors.New("database query failed")
	}
	return record.PersonaID, nil
}
