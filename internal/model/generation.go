package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GenerationStatus represents the status of a generation.
type GenerationStatus string

const (
	GenerationStatusPending   GenerationStatus = "pending"
	GenerationStatusSucceeded GenerationStatus = "succeeded"
	GenerationStatusFailed    GenerationStatus = "failed"
)

// Generation is a single image generation request and its stored artifact.
// Rows are never updated after insert.
type Generation struct {
	ID        uuid.UUID        `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID        `json:"userId" gorm:"type:char(36);not null;index:idx_generations_user_created,priority:1"`
	Prompt    string           `json:"prompt" gorm:"size:300;not null"`
	Style     string           `json:"style" gorm:"size:40;not null"`
	ImageURL  string           `json:"imageUrl" gorm:"column:image_url;size:512;not null"`
	Status    GenerationStatus `json:"status" gorm:"type:varchar(20);not null;default:'succeeded'"`
	CreatedAt time.Time        `json:"createdAt" gorm:"index:idx_generations_user_created,priority:2"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
}

// BeforeCreate sets UUID before creating the record.
func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GenerationResult is the public view of a Generation.
type GenerationResult struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	ImageURL  string    `json:"imageUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result returns the public fields of the generation.
func (g *Generation) Result() GenerationResult {
	return GenerationResult{
		ID:        g.ID.String(),
		Prompt:    g.Prompt,
		Style:     g.Style,
		ImageURL:  g.ImageURL,
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt,
	}
}

// Results converts a slice of generations, never returning nil.
func Results(gens []Generation) []GenerationResult {
	out := make([]GenerationResult, 0, len(gens))
	for i := range gens {
		out = append(out, gens[i].Result())
	}
	return out
}
