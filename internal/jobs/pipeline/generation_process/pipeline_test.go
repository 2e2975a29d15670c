package generation_process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/testutil"
	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	jobrt "github.com/tenxcards/tenxcards-backend/internal/jobs/runtime"
	"github.com/tenxcards/tenxcards-backend/internal/jobs/worker"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
)

const source = `Mitochondria are the powerhouse of the cell and produce most of its ATP.
The nucleus contains the genetic material of eukaryotic cells. Ribosomes build proteins
by translating messenger RNA. Photosynthesis refers to the process by which plants turn
light into chemical energy. Cells divide through mitosis to grow and repair tissue.`

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, string, int) ([]flashcards.Candidate, error) {
	return nil, g.err
}
func (failingGenerator) Model() string { return "failing" }

type panickingGenerator struct{}

func (panickingGenerator) Generate(context.Context, string, int) ([]flashcards.Candidate, error) {
	panic("generator exploded")
}
func (panickingGenerator) Model() string { return "panicking" }

// flakyGenerations fails the first failWrites updates that set the given
// status and passes everything else through.
type flakyGenerations struct {
	repos.GenerationRepo
	status     types.GenerationStatus
	failWrites int
}

func (r *flakyGenerations) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, from []types.GenerationStatus, updates map[string]interface{}) (bool, error) {
	if updates["status"] == r.status && r.failWrites > 0 {
		r.failWrites--
		return false, errors.New("connection reset")
	}
	return r.GenerationRepo.UpdateFieldsIfStatus(dbc, id, from, updates)
}

type recorder struct {
	status types.GenerationStatus
	cards  int
}

func (r *recorder) ObserveGeneration(status types.GenerationStatus, cards int) {
	r.status, r.cards = status, cards
}

type fixture struct {
	gdb  *gorm.DB
	jobs repos.JobRunRepo
	gens repos.GenerationRepo
	cand repos.GeneratedCardRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	return fixture{
		gdb:  gdb,
		jobs: repos.NewJobRunRepo(gdb, log),
		gens: repos.NewGenerationRepo(gdb, log),
		cand: repos.NewGeneratedCardRepo(gdb, log),
	}
}

func (f fixture) pipeline(t *testing.T, gen flashcards.Generator) *Pipeline {
	return New(testutil.Logger(t), db.NewGormTxRunner(f.gdb), f.gens, f.cand, gen)
}

func (f fixture) seed(t *testing.T, status types.GenerationStatus) (*types.Generation, *jobrt.Context) {
	t.Helper()
	ctx := context.Background()
	g := &types.Generation{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		SourceText:       source,
		SourceTextLength: len(source),
		SourceTextHash:   "h",
		TargetCount:      5,
		Status:           status,
	}
	if err := f.gens.Create(dbctx.Context{Ctx: ctx}, g); err != nil {
		t.Fatalf("create generation: %v", err)
	}
	job := &types.JobRun{
		OwnerUserID: g.UserID,
		JobType:     types.JobTypeGenerationProcess,
		EntityType:  types.EntityTypeGeneration,
		EntityID:    testutil.PtrUUID(g.ID),
		Status:      types.JobStatusRunning,
		Stage:       "running",
		Attempts:    1,
		Payload:     datatypes.JSON([]byte(`{"generation_id":"` + g.ID.String() + `"}`)),
	}
	if err := f.jobs.Create(dbctx.Context{Ctx: ctx}, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return g, jobrt.NewContext(ctx, job, f.jobs, testutil.Logger(t), 3)
}

func TestRunCompletesGeneration(t *testing.T) {
	f := newFixture(t)
	g, jc := f.seed(t, types.GenerationPending)

	rec := &recorder{}
	if err := f.pipeline(t, flashcards.NewHeuristicGenerator()).WithObserver(rec).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.status != types.GenerationCompleted || rec.cards != 5 {
		t.Fatalf("observer: %+v", rec)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("job status: want=succeeded got=%s (%s)", jc.Job.Status, jc.Job.Error)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	got, err := f.gens.GetByID(dbc, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.GenerationCompleted || got.GeneratedCount != 5 {
		t.Fatalf("generation: status=%s generated=%d", got.Status, got.GeneratedCount)
	}
	if got.Model != "heuristic-v1" || got.CompletedAt == nil {
		t.Fatalf("expected model and completed_at to be set: %+v", got)
	}
	cards, err := f.cand.ListByGeneration(dbc, g.ID)
	if err != nil {
		t.Fatalf("ListByGeneration: %v", err)
	}
	if len(cards) != 5 {
		t.Fatalf("candidates: want=5 got=%d", len(cards))
	}
	for i, c := range cards {
		if c.Position != i {
			t.Fatalf("position %d: got=%d", i, c.Position)
		}
		if c.ReadabilityScore < 0 || c.ReadabilityScore > 1 {
			t.Fatalf("score out of range: %v", c.ReadabilityScore)
		}
	}
}

func TestRunGeneratorFailureMarksGenerationFailed(t *testing.T) {
	f := newFixture(t)
	g, jc := f.seed(t, types.GenerationPending)

	gen := failingGenerator{err: apierr.External(apierr.KindRateLimit, errors.New("429 from provider"))}
	if err := f.pipeline(t, gen).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	got, _ := f.gens.GetByID(dbc, g.ID)
	if got.Status != types.GenerationFailed {
		t.Fatalf("generation status: want=failed got=%s", got.Status)
	}
	if got.ErrorMessage != "AI provider rate limit reached, try again later" {
		t.Fatalf("error_message: %q", got.ErrorMessage)
	}
	job, _ := f.jobs.GetByID(dbc, jc.Job.ID)
	if job.Status != types.JobStatusFailed || job.Attempts != 3 {
		t.Fatalf("job must be failed with attempts exhausted: status=%s attempts=%d", job.Status, job.Attempts)
	}
}

func TestRunSkipsTerminalGeneration(t *testing.T) {
	f := newFixture(t)
	g, jc := f.seed(t, types.GenerationFailed)

	gen := failingGenerator{err: errors.New("must not be called")}
	if err := f.pipeline(t, gen).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusSucceeded {
		t.Fatalf("job status: want=succeeded got=%s", jc.Job.Status)
	}
	got, _ := f.gens.GetByID(dbctx.Context{Ctx: context.Background()}, g.ID)
	if got.Status != types.GenerationFailed || got.ErrorMessage != "" {
		t.Fatalf("terminal generation must be untouched: %+v", got)
	}
}

func TestRunMissingGenerationID(t *testing.T) {
	f := newFixture(t)
	job := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     types.JobTypeGenerationProcess,
		Status:      types.JobStatusRunning,
		Stage:       "running",
		Attempts:    1,
		Payload:     datatypes.JSON([]byte(`{}`)),
	}
	if err := f.jobs.Create(dbctx.Context{Ctx: context.Background()}, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	jc := jobrt.NewContext(context.Background(), job, f.jobs, testutil.Logger(t), 3)
	if err := f.pipeline(t, flashcards.NewHeuristicGenerator()).Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed || jc.Job.Attempts != 3 {
		t.Fatalf("expected aborted job, got status=%s attempts=%d", jc.Job.Status, jc.Job.Attempts)
	}
}

func TestPublicFailure(t *testing.T) {
	if got := publicFailure(errors.New("plain")); got != "plain" {
		t.Fatalf("plain: %q", got)
	}
	if got := publicFailure(apierr.External(apierr.KindAuthentication, errors.New("401"))); got != "AI provider rejected the credentials" {
		t.Fatalf("auth: %q", got)
	}
}

func TestStartFailureRetriesThenFailsGeneration(t *testing.T) {
	f := newFixture(t)
	g, jc := f.seed(t, types.GenerationPending)
	gens := &flakyGenerations{GenerationRepo: f.gens, status: types.GenerationProcessing, failWrites: 2}
	p := New(testutil.Logger(t), db.NewGormTxRunner(f.gdb), gens, f.cand, flashcards.NewHeuristicGenerator())
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Job.Status != types.JobStatusFailed || jc.Job.Attempts != 1 {
		t.Fatalf("first attempt must stay retryable: status=%s attempts=%d", jc.Job.Status, jc.Job.Attempts)
	}
	if got, _ := f.gens.GetByID(dbc, g.ID); got.Status != types.GenerationPending {
		t.Fatalf("generation must stay pending while attempts remain, got %s", got.Status)
	}

	jc.Job.Attempts = 3
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := f.gens.GetByID(dbc, g.ID)
	if got.Status != types.GenerationFailed {
		t.Fatalf("generation status on last attempt: want=failed got=%s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "mark processing") {
		t.Fatalf("error_message: %q", got.ErrorMessage)
	}
}

func TestMarkFailedRetriesTheWrite(t *testing.T) {
	f := newFixture(t)
	g, jc := f.seed(t, types.GenerationPending)
	gens := &flakyGenerations{GenerationRepo: f.gens, status: types.GenerationFailed, failWrites: 1}
	p := New(testutil.Logger(t), db.NewGormTxRunner(f.gdb), gens, f.cand, failingGenerator{err: errors.New("model down")})

	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := f.gens.GetByID(dbctx.Context{Ctx: context.Background()}, g.ID)
	if got.Status != types.GenerationFailed || got.ErrorMessage != "model down" {
		t.Fatalf("generation: status=%s error_message=%q", got.Status, got.ErrorMessage)
	}
	if jc.Job.Attempts != 3 {
		t.Fatalf("job must be aborted once the failure is recorded, attempts=%d", jc.Job.Attempts)
	}
}

func TestPanickingGeneratorFailsGenerationAfterLastAttempt(t *testing.T) {
	f := newFixture(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	g := &types.Generation{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		SourceText:       source,
		SourceTextLength: len(source),
		SourceTextHash:   "h",
		TargetCount:      5,
		Status:           types.GenerationPending,
	}
	if err := f.gens.Create(dbc, g); err != nil {
		t.Fatalf("create generation: %v", err)
	}
	job := &types.JobRun{
		OwnerUserID: g.UserID,
		JobType:     types.JobTypeGenerationProcess,
		EntityType:  types.EntityTypeGeneration,
		EntityID:    testutil.PtrUUID(g.ID),
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte(`{"generation_id":"` + g.ID.String() + `"}`)),
	}
	if err := f.jobs.Create(dbc, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	reg := jobrt.NewRegistry()
	if err := reg.Register(f.pipeline(t, panickingGenerator{})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w := worker.NewWorker(log, f.jobs, reg, worker.Config{MaxAttempts: 3, RetryDelay: time.Nanosecond})

	runs := 0
	for i := 0; i < 10; i++ {
		time.Sleep(time.Millisecond)
		ran, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if ran {
			runs++
		}
	}
	if runs != 3 {
		t.Fatalf("runs: want=3 got=%d", runs)
	}

	gotJob, _ := f.jobs.GetByID(dbc, job.ID)
	if gotJob.Status != types.JobStatusFailed || gotJob.Attempts != 3 {
		t.Fatalf("job: status=%s attempts=%d", gotJob.Status, gotJob.Attempts)
	}
	got, _ := f.gens.GetByID(dbc, g.ID)
	if got.Status != types.GenerationFailed {
		t.Fatalf("generation status: want=failed got=%s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "generator exploded") || got.CompletedAt == nil {
		t.Fatalf("failure not recorded: error_message=%q completed_at=%v", got.ErrorMessage, got.CompletedAt)
	}
}
