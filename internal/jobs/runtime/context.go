package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

/*
Context is the execution handle for a single claimed job run. Pipelines never
write job_run directly; they report through Progress, Fail, Abort and Succeed.
*/
type Context struct {
	Ctx  context.Context
	Job  *types.JobRun
	Repo repos.JobRunRepo
	Log  *logger.Logger

	maxAttempts int
	payload     map[string]any
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, log *logger.Logger, maxAttempts int) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:         ctx,
		Job:         job,
		Repo:        repo,
		maxAttempts: maxAttempts,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	if job != nil {
		log = log.With("job_id", job.ID, "job_type", job.JobType)
	}
	c.Log = log
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// applyTraceData carries the enqueuing request's ids into the job context.
func (c *Context) applyTraceData() {
	p := c.Payload()
	traceID := payloadString(p, "trace_id")
	reqID := payloadString(p, "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

func payloadString(p map[string]any, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := payloadString(c.Payload(), key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Progress persists a non-terminal stage and percentage and refreshes the
// heartbeat. Finished jobs are never moved back.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	now := time.Now().UTC()
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("Job progress update failed", "stage", stage, "error", err)
			return
		}
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
}

// Fail marks the run failed. The worker may claim it again once the retry
// delay passes and attempts remain.
func (c *Context) Fail(stage string, err error) {
	c.fail(stage, err, false)
}

// Abort marks the run failed and exhausts its attempts so it is never retried.
func (c *Context) Abort(stage string, err error) {
	c.fail(stage, err, true)
}

func (c *Context) fail(stage string, err error, final bool) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	updates := map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}
	if final && c.maxAttempts > c.Job.Attempts {
		updates["attempts"] = c.maxAttempts
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, uErr := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusSucceeded}, updates)
		if uErr != nil {
			c.Log.Error("Job fail update failed", "stage", stage, "error", uErr)
			return
		}
		if !ok {
			return
		}
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
	if final && c.maxAttempts > c.Job.Attempts {
		c.Job.Attempts = c.maxAttempts
	}
	c.Log.Warn("Job failed", "stage", stage, "final", final, "error", msg)
}

// Succeed marks the run done with progress 100 and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Log.Warn("Job result not serializable", "error", err)
		} else {
			res = datatypes.JSON(b)
		}
	}
	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Error("Job succeed update failed", "error", err)
			return
		}
		if !ok {
			return
		}
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
}

// LastAttempt reports whether a failure now would exhaust the run's attempts.
func (c *Context) LastAttempt() bool {
	if c == nil || c.Job == nil {
		return true
	}
	return c.maxAttempts <= 0 || c.Job.Attempts >= c.maxAttempts
}
