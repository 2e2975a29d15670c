package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CardSourceType string

const (
	CardSourceManual   CardSourceType = "manual"
	CardSourceAI       CardSourceType = "ai"
	CardSourceAIEdited CardSourceType = "ai_edited"
)

type Card struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	FrontContent     string         `gorm:"column:front_content;not null" json:"front_content"`
	BackContent      string         `gorm:"column:back_content;not null" json:"back_content"`
	SourceType       CardSourceType `gorm:"column:source_type;not null;index" json:"source_type"`
	ReadabilityScore *float64       `gorm:"column:readability_score" json:"readability_score,omitempty"`
	GenerationID     *uuid.UUID     `gorm:"type:uuid;column:generation_id;index" json:"generation_id,omitempty"`
	IsDeleted        bool           `gorm:"column:is_deleted;not null;default:false;index" json:"-"`
	DeletedAt        *time.Time     `gorm:"column:deleted_at" json:"-"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Card) TableName() string { return "card" }

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
