package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// Generation is one text-to-flashcards request. Rows are never deleted.
type Generation struct {
	ID                    uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	SourceText            string           `gorm:"column:source_text;not null" json:"-"`
	SourceTextLength      int              `gorm:"column:source_text_length;not null" json:"source_text_length"`
	SourceTextHash        string           `gorm:"column:source_text_hash;not null;index" json:"source_text_hash"`
	TargetCount           int              `gorm:"column:target_count;not null" json:"target_count"`
	Status                GenerationStatus `gorm:"column:status;not null;index" json:"status"`
	Model                 string           `gorm:"column:model" json:"model,omitempty"`
	GeneratedCount        int              `gorm:"column:generated_count;not null;default:0" json:"generated_count"`
	AcceptedEditedCount   int              `gorm:"column:accepted_edited_count;not null;default:0" json:"accepted_edited_count"`
	AcceptedUneditedCount int              `gorm:"column:accepted_unedited_count;not null;default:0" json:"accepted_unedited_count"`
	RejectedCount         int              `gorm:"column:rejected_count;not null;default:0" json:"rejected_count"`
	GenerationTimeMS      int64            `gorm:"column:generation_time_ms;not null;default:0" json:"generation_time_ms"`
	ErrorMessage          string           `gorm:"column:error_message" json:"error_message,omitempty"`
	SetID                 *uuid.UUID       `gorm:"type:uuid;column:set_id;index" json:"set_id,omitempty"`
	CompletedAt           *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"not null" json:"updated_at"`
}

func (Generation) TableName() string { return "generation" }

func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GeneratedCard is a candidate proposed for a generation. Rejection deletes it.
type GeneratedCard struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GenerationID     uuid.UUID `gorm:"type:uuid;not null;index" json:"generation_id"`
	FrontContent     string    `gorm:"column:front_content;not null" json:"front_content"`
	BackContent      string    `gorm:"column:back_content;not null" json:"back_content"`
	ReadabilityScore float64   `gorm:"column:readability_score;not null;default:0" json:"readability_score"`
	Position         int       `gorm:"column:position;not null;default:0" json:"-"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (GeneratedCard) TableName() string { return "generated_card" }

func (c *GeneratedCard) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	JobTypeGenerationProcess = "generation_process"
	EntityTypeGeneration     = "generation"
)
