package generation_process

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	jobrt "github.com/tenxcards/tenxcards-backend/internal/jobs/runtime"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
)

const (
	maxErrorMessage   = 1000
	markFailedTries   = 3
	markFailedBackoff = 200 * time.Millisecond
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	genID, ok := jc.PayloadUUID("generation_id")
	if !ok {
		jc.Abort("validate", fmt.Errorf("missing generation_id"))
		return nil
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}

	gen, err := p.generations.GetByID(dbc, genID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		jc.Abort("load", fmt.Errorf("generation %s not found", genID))
		return nil
	}
	if err != nil {
		p.failAttempt(jc, genID, "load", fmt.Errorf("load generation: %w", err))
		return nil
	}
	if gen.Status.Terminal() {
		jc.Succeed("done", map[string]any{"generation_id": genID.String(), "status": string(gen.Status)})
		return nil
	}

	moved, err := p.generations.UpdateFieldsIfStatus(dbc, genID,
		[]types.GenerationStatus{types.GenerationPending, types.GenerationProcessing},
		map[string]interface{}{"status": types.GenerationProcessing},
	)
	if err != nil {
		p.failAttempt(jc, genID, "start", fmt.Errorf("mark processing: %w", err))
		return nil
	}
	if !moved {
		jc.Succeed("done", map[string]any{"generation_id": genID.String()})
		return nil
	}
	jc.Progress("generate", 10, "Generating flashcards")

	start := time.Now()
	cands, err := p.generator.Generate(jc.Ctx, gen.SourceText, gen.TargetCount)
	if err == nil && len(cands) == 0 {
		err = errors.New("no flashcards could be generated from this text")
	}
	if err != nil {
		p.markFailed(jc, genID, "generate", err)
		return nil
	}
	jc.Progress("score", 60, "Scoring flashcards")

	rows, err := p.score(jc, genID, cands)
	if err != nil {
		p.markFailed(jc, genID, "score", err)
		return nil
	}
	jc.Progress("store", 80, "Saving flashcards")

	elapsed := time.Since(start).Milliseconds()
	now := time.Now().UTC()
	err = p.tx.InTx(jc.Ctx, func(txc dbctx.Context) error {
		if err := p.candidates.Create(txc, rows); err != nil {
			return fmt.Errorf("store candidates: %w", err)
		}
		ok, err := p.generations.UpdateFieldsIfStatus(txc, genID,
			[]types.GenerationStatus{types.GenerationProcessing},
			map[string]interface{}{
				"status":             types.GenerationCompleted,
				"generated_count":    len(rows),
				"generation_time_ms": elapsed,
				"model":              p.generator.Model(),
				"error_message":      "",
				"completed_at":       now,
			},
		)
		if err != nil {
			return fmt.Errorf("complete generation: %w", err)
		}
		if !ok {
			return fmt.Errorf("generation %s left processing", genID)
		}
		return nil
	})
	if err != nil {
		p.failAttempt(jc, genID, "store", err)
		return nil
	}

	p.observe(types.GenerationCompleted, len(rows))
	p.log.Info("Generation completed",
		"generation_id", genID,
		"generated_count", len(rows),
		"generation_time_ms", elapsed,
		"model", p.generator.Model(),
	)
	jc.Succeed("done", map[string]any{
		"generation_id":   genID.String(),
		"generated_count": len(rows),
	})
	return nil
}

// score computes readability for each candidate concurrently. Output order
// follows the generator's order.
func (p *Pipeline) score(jc *jobrt.Context, genID uuid.UUID, cands []flashcards.Candidate) ([]*types.GeneratedCard, error) {
	rows := make([]*types.GeneratedCard, len(cands))
	g, ctx := errgroup.WithContext(jc.Ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range cands {
		i, c := i, c
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("score card %d: panic: %v", i, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			rows[i] = &types.GeneratedCard{
				ID:               uuid.New(),
				GenerationID:     genID,
				FrontContent:     c.Front,
				BackContent:      c.Back,
				ReadabilityScore: flashcards.Readability(c.Front, c.Back),
				Position:         i,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// failAttempt retries infrastructure errors while attempts remain. On the last
// attempt the generation is marked failed instead.
func (p *Pipeline) failAttempt(jc *jobrt.Context, genID uuid.UUID, stage string, cause error) {
	if jc.LastAttempt() {
		p.markFailed(jc, genID, stage, cause)
		return
	}
	jc.Fail(stage, cause)
}

// markFailed records the failure on the generation so pollers see it, then
// aborts the run. A failed generation is never picked up again.
func (p *Pipeline) markFailed(jc *jobrt.Context, genID uuid.UUID, stage string, cause error) {
	if err := p.failGeneration(jc.Ctx, genID, cause); err != nil {
		p.log.Error("Mark generation failed", "generation_id", genID, "error", err)
		jc.Fail(stage, cause)
		return
	}
	p.log.Warn("Generation failed", "generation_id", genID, "stage", stage, "error", cause)
	jc.Abort(stage, cause)
}

// OnExhausted fails the generation of a run that ended without reporting,
// such as after a panic or a lost heartbeat on the final attempt.
func (p *Pipeline) OnExhausted(jc *jobrt.Context, cause error) {
	genID, ok := jc.PayloadUUID("generation_id")
	if !ok {
		return
	}
	if err := p.failGeneration(jc.Ctx, genID, cause); err != nil {
		p.log.Error("Mark exhausted generation failed", "generation_id", genID, "error", err)
		return
	}
	p.log.Warn("Generation failed after last attempt", "generation_id", genID, "error", cause)
}

// failGeneration moves a pending or processing generation to failed. The
// write is retried a few times since it is the only record a poller sees.
func (p *Pipeline) failGeneration(ctx context.Context, genID uuid.UUID, cause error) error {
	updates := map[string]interface{}{
		"status":        types.GenerationFailed,
		"error_message": publicFailure(cause),
		"completed_at":  time.Now().UTC(),
	}
	var err error
	for i := 0; i < markFailedTries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(i) * markFailedBackoff):
			}
		}
		var moved bool
		moved, err = p.generations.UpdateFieldsIfStatus(dbctx.Context{Ctx: ctx}, genID,
			[]types.GenerationStatus{types.GenerationPending, types.GenerationProcessing},
			updates,
		)
		if err == nil {
			if moved {
				p.observe(types.GenerationFailed, 0)
			}
			return nil
		}
	}
	return err
}

func publicFailure(err error) string {
	var ae *apierr.Error
	msg := err.Error()
	if errors.As(err, &ae) && ae.Code == apierr.CodeExternalService {
		switch ae.Kind {
		case apierr.KindAuthentication:
			msg = "AI provider rejected the credentials"
		case apierr.KindRateLimit:
			msg = "AI provider rate limit reached, try again later"
		case apierr.KindInvalidModel:
			msg = "AI model is not available"
		case apierr.KindContextLength:
			msg = "text is too long for the AI model"
		default:
			msg = "AI provider is unavailable, try again later"
		}
	}
	if r := []rune(msg); len(r) > maxErrorMessage {
		msg = string(r[:maxErrorMessage])
	}
	return msg
}
