package app

import (
	"gorm.io/gorm"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type Repos struct {
	Card          repos.CardRepo
	CardSet       repos.CardSetRepo
	CardToSet     repos.CardToSetRepo
	Generation    repos.GenerationRepo
	GeneratedCard repos.GeneratedCardRepo
	JobRun        repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Card:          repos.NewCardRepo(db, log),
		CardSet:       repos.NewCardSetRepo(db, log),
		CardToSet:     repos.NewCardToSetRepo(db, log),
		Generation:    repos.NewGenerationRepo(db, log),
		GeneratedCard: repos.NewGeneratedCardRepo(db, log),
		JobRun:        repos.NewJobRunRepo(db, log),
	}
}
