package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/testutil"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"gorm.io/datatypes"
)

func newJob(owner uuid.UUID, jobType, status string, createdAt time.Time) *types.JobRun {
	return &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: owner,
		JobType:     jobType,
		EntityType:  "generation",
		EntityID:    testutil.PtrUUID(uuid.New()),
		Status:      status,
		Stage:       status,
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestJobRunRepoClaimOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	owner := uuid.New()

	queued := newJob(owner, "generation_process", types.JobStatusQueued, now.Add(-3*time.Hour))
	failed := newJob(owner, "generation_process", types.JobStatusFailed, now.Add(-2*time.Hour))
	failed.LastErrorAt = testutil.PtrTime(now.Add(-2 * time.Hour))
	stale := newJob(owner, "generation_process", types.JobStatusRunning, now.Add(-1*time.Hour))
	stale.HeartbeatAt = testutil.PtrTime(now.Add(-10 * time.Hour))
	exhausted := newJob(owner, "generation_process", types.JobStatusFailed, now.Add(-30*time.Minute))
	exhausted.Attempts = 3
	done := newJob(owner, "generation_process", types.JobStatusSucceeded, now.Add(-4*time.Hour))

	for _, j := range []*types.JobRun{queued, failed, stale, exhausted, done} {
		if err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	want := []uuid.UUID{queued.ID, failed.ID, stale.ID}
	for i, id := range want {
		got, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, id, got)
		}
		if got.Status != types.JobStatusRunning {
			t.Fatalf("ClaimNextRunnable #%d: status=%s", i+1, got.Status)
		}
	}
	if got, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour); err != nil || got != nil {
		t.Fatalf("ClaimNextRunnable: expected nil, got %v err=%v", got, err)
	}

	reloaded, err := repo.GetByID(dbc, queued.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Attempts != 1 || reloaded.Status != types.JobStatusRunning || reloaded.HeartbeatAt == nil {
		t.Fatalf("claimed row not updated: %+v", reloaded)
	}
}

func TestJobRunRepoLatestAndGuardedUpdates(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	owner := uuid.New()
	entityID := uuid.New()

	older := newJob(owner, "generation_process", types.JobStatusSucceeded, now.Add(-5*time.Hour))
	older.EntityID = &entityID
	newer := newJob(owner, "generation_process", types.JobStatusRunning, now.Add(-4*time.Hour))
	newer.EntityID = &entityID
	for _, j := range []*types.JobRun{older, newer} {
		if err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	latest, err := repo.GetLatestByEntity(dbc, owner, "generation", entityID, "generation_process")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: expected %v got %v", newer.ID, latest)
	}
	if none, err := repo.GetLatestByEntity(dbc, uuid.New(), "generation", entityID, "generation_process"); err != nil || none != nil {
		t.Fatalf("other owner must not see the job: %v %v", none, err)
	}

	if err := repo.Heartbeat(dbc, newer.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	changed, err := repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{
		"progress": 50,
	})
	if err != nil || !changed {
		t.Fatalf("UpdateFieldsUnlessStatus: changed=%v err=%v", changed, err)
	}
	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{"status": types.JobStatusSucceeded}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	changed, err = repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{
		"progress": 10,
	})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if changed {
		t.Fatalf("terminal job must not be updated")
	}
	got, err := repo.GetByID(dbc, newer.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Progress != 50 {
		t.Fatalf("progress: want=50 got=%d", got.Progress)
	}
}

func TestJobRunRepoStaleExhaustedIsNotReclaimed(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	stuck := newJob(uuid.New(), "generation_process", types.JobStatusRunning, now.Add(-time.Hour))
	stuck.Attempts = 3
	stuck.HeartbeatAt = testutil.PtrTime(now.Add(-10 * time.Hour))
	fresh := newJob(uuid.New(), "generation_process", types.JobStatusRunning, now.Add(-time.Hour))
	fresh.Attempts = 3
	fresh.HeartbeatAt = testutil.PtrTime(now)
	for _, j := range []*types.JobRun{stuck, fresh} {
		if err := repo.Create(dbc, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if got, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour); err != nil || got != nil {
		t.Fatalf("ClaimNextRunnable: exhausted job must stay unclaimed, got %v err=%v", got, err)
	}

	reaped, err := repo.FailStaleExhausted(dbc, 3, time.Hour)
	if err != nil {
		t.Fatalf("FailStaleExhausted: %v", err)
	}
	if reaped == nil || reaped.ID != stuck.ID || reaped.Status != types.JobStatusFailed {
		t.Fatalf("FailStaleExhausted: expected %v failed, got %+v", stuck.ID, reaped)
	}
	if again, err := repo.FailStaleExhausted(dbc, 3, time.Hour); err != nil || again != nil {
		t.Fatalf("FailStaleExhausted twice: got %v err=%v", again, err)
	}

	got, err := repo.GetByID(dbc, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.JobStatusFailed || got.Attempts != 3 || got.Error == "" {
		t.Fatalf("reaped row not updated: %+v", got)
	}
	if got, _ := repo.GetByID(dbc, fresh.ID); got.Status != types.JobStatusRunning {
		t.Fatalf("live job must keep running, got %s", got.Status)
	}
}
