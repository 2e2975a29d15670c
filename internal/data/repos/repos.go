package repos

import (
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/cards"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/generation"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/jobs"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type CardRepo = cards.CardRepo
type CardSetRepo = cards.CardSetRepo
type CardToSetRepo = cards.CardToSetRepo
type CardFilter = cards.CardFilter

type GenerationRepo = generation.GenerationRepo
type GeneratedCardRepo = generation.GeneratedCardRepo
type CounterDelta = generation.CounterDelta

type JobRunRepo = jobs.JobRunRepo

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo { return cards.NewCardRepo(db, baseLog) }
func NewCardSetRepo(db *gorm.DB, baseLog *logger.Logger) CardSetRepo {
	return cards.NewCardSetRepo(db, baseLog)
}
func NewCardToSetRepo(db *gorm.DB, baseLog *logger.Logger) CardToSetRepo {
	return cards.NewCardToSetRepo(db, baseLog)
}

func NewGenerationRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRepo {
	return generation.NewGenerationRepo(db, baseLog)
}
func NewGeneratedCardRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedCardRepo {
	return generation.NewGeneratedCardRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
