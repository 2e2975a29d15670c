package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/jobs/runtime"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
	HeartbeatInterval time.Duration

	// Observer, when set, is told about every executed run.
	Observer Observer
}

type Observer interface {
	ObserveJob(jobType, status string, dur time.Duration)
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 10 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	return c
}

type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	cfg      Config
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg.withDefaults(),
	}
}

// Run polls for work on cfg.Concurrency loops and blocks until ctx is done
// and every in-flight job has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
	)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain everything runnable before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims at most one runnable job and executes it. When nothing is
// runnable it fails one stale job that lost its worker on the final attempt.
// It reports whether a job was handled.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	job, err := w.repo.ClaimNextRunnable(dbc, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job != nil {
		w.execute(ctx, job)
		return true, nil
	}

	stale, err := w.repo.FailStaleExhausted(dbc, w.cfg.MaxAttempts, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if stale == nil {
		return false, nil
	}
	w.log.Warn("Stale job out of attempts", "job_id", stale.ID, "job_type", stale.JobType, "attempts", stale.Attempts)
	if h, ok := w.registry.Get(stale.JobType); ok {
		jc := runtime.NewContext(ctx, stale, w.repo, w.log, w.cfg.MaxAttempts)
		w.exhausted(h, jc, errors.New(stale.Error))
	}
	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveJob(stale.JobType, types.JobStatusFailed, 0)
	}
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	jc := runtime.NewContext(ctx, job, w.repo, w.log, w.cfg.MaxAttempts)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Abort("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	stop := w.startHeartbeat(ctx, job)
	defer stop()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
			cause := &panicError{Val: r}
			jc.Fail("panic", cause)
			w.exhausted(h, jc, cause)
		}
		if w.cfg.Observer != nil {
			w.cfg.Observer.ObserveJob(job.JobType, jc.Job.Status, time.Since(start))
		}
		w.log.Debug("Job finished",
			"job_id", job.ID,
			"job_type", job.JobType,
			"status", jc.Job.Status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}()

	if runErr := h.Run(jc); runErr != nil && jc.Job.Status != types.JobStatusFailed {
		// Most pipelines call jc.Fail themselves; this is a safety net.
		jc.Fail("run", runErr)
		w.exhausted(h, jc, runErr)
	}
}

// exhausted hands a final failure the handler did not report back to it.
func (w *Worker) exhausted(h runtime.Handler, jc *runtime.Context, cause error) {
	eh, ok := h.(runtime.ExhaustedHandler)
	if !ok || !jc.LastAttempt() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("OnExhausted panic", "job_id", jc.Job.ID, "job_type", jc.Job.JobType, "panic", r)
		}
	}()
	eh.OnExhausted(jc, cause)
}

func (w *Worker) startHeartbeat(ctx context.Context, job *types.JobRun) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hbCtx}, job.ID); err != nil && hbCtx.Err() == nil {
					w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
