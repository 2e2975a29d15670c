package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CardSet struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Slug        string     `gorm:"column:slug;not null;index" json:"slug"`
	Description string     `gorm:"column:description" json:"description"`
	IsDeleted   bool       `gorm:"column:is_deleted;not null;default:false;index" json:"-"`
	DeletedAt   *time.Time `gorm:"column:deleted_at" json:"-"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	CardCount int64 `gorm:"-" json:"card_count"`
}

func (CardSet) TableName() string { return "card_set" }

func (s *CardSet) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CardToSet joins cards and sets. It owns nothing.
type CardToSet struct {
	CardID    uuid.UUID `gorm:"type:uuid;primaryKey;column:card_id" json:"card_id"`
	SetID     uuid.UUID `gorm:"type:uuid;primaryKey;column:set_id;index" json:"set_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (CardToSet) TableName() string { return "card_to_set" }
