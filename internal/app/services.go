package app

import (
	"fmt"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/jobs/pipeline/generation_process"
	jobruntime "github.com/tenxcards/tenxcards-backend/internal/jobs/runtime"
	"github.com/tenxcards/tenxcards-backend/internal/jobs/worker"
	"github.com/tenxcards/tenxcards-backend/internal/observability"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
	"github.com/tenxcards/tenxcards-backend/internal/services"
)

type Services struct {
	Card       services.CardService
	CardSet    services.CardSetService
	Generation services.GenerationService
	JobService services.JobService

	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(log *logger.Logger, cfg Config, tx db.TxRunner, r Repos, c Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	jobService := services.NewJobService(log, r.JobRun)

	registry := jobruntime.NewRegistry()
	pipeline := generation_process.New(log, tx, r.Generation, r.GeneratedCard, c.Generator).WithObserver(metrics)
	if err := registry.Register(pipeline); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", pipeline.Type(), err)
	}
	jobWorker := worker.NewWorker(log, r.JobRun, registry, worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		MaxAttempts:  cfg.WorkerMaxAttempts,
		RetryDelay:   cfg.WorkerRetryDelay,
		Observer:     metrics,
	})

	return Services{
		Card:    services.NewCardService(log, r.Card),
		CardSet: services.NewCardSetService(log, tx, r.CardSet, r.Card, r.CardToSet),
		Generation: services.NewGenerationService(log, tx, r.Generation, r.GeneratedCard, r.Card, r.CardSet, r.CardToSet,
			jobService, c.Limiter, services.GenerationServiceConfig{MinTextLength: cfg.MinTextLength}),
		JobService:  jobService,
		JobRegistry: registry,
		JobWorker:   jobWorker,
	}, nil
}
