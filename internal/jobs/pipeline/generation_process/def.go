package generation_process

import (
	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

// Observer is told how each generation ended.
type Observer interface {
	ObserveGeneration(status types.GenerationStatus, cards int)
}

// Pipeline turns a pending generation into scored candidates.
type Pipeline struct {
	log *logger.Logger
	tx  db.TxRunner

	generations repos.GenerationRepo
	candidates  repos.GeneratedCardRepo
	generator   flashcards.Generator
	obs         Observer
}

func New(
	baseLog *logger.Logger,
	tx db.TxRunner,
	generations repos.GenerationRepo,
	candidates repos.GeneratedCardRepo,
	generator flashcards.Generator,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", types.JobTypeGenerationProcess),
		tx:          tx,
		generations: generations,
		candidates:  candidates,
		generator:   generator,
	}
}

// WithObserver sets the observer and returns p.
func (p *Pipeline) WithObserver(obs Observer) *Pipeline {
	p.obs = obs
	return p
}

func (p *Pipeline) observe(status types.GenerationStatus, cards int) {
	if p.obs != nil {
		p.obs.ObserveGeneration(status, cards)
	}
}

func (p *Pipeline) Type() string { return types.JobTypeGenerationProcess }
