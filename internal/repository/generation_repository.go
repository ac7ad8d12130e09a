package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"genstudio/internal/model"
)

// GenerationRepository defines generation persistence operations.
type GenerationRepository interface {
	Create(ctx context.Context, generation *model.Generation) error
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Generation, error)
}

type generationRepository struct {
	db *gorm.DB
}

// NewGenerationRepository creates a new generation repository.
func NewGenerationRepository(db *gorm.DB) GenerationRepository {
	return &generationRepository{db: db}
}

// Create creates a new generation record.
func (r *generationRepository) Create(ctx context.Context, generation *model.Generation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(generation).Error
}

// ListRecentByUser returns the user's newest generations first.
func (r *generationRepository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Generation, error) {
	var gens []model.Generation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&gens).Error
	if err != nil {
		return nil, err
	}
	return gens, nil
}
