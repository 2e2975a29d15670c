package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/testutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/dbctx"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ratelimit"
)

type testEnv struct {
	db  *gorm.DB
	dbc dbctx.Context

	jobRepo repos.JobRunRepo
	genRepo repos.GenerationRepo
	candRepo repos.GeneratedCardRepo

	cards       CardService
	sets        CardSetService
	generations GenerationService
	jobs        JobService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimit(t, ratelimit.Config{Requests: 1000, Window: time.Minute})
}

func newTestEnvWithLimit(t *testing.T, limit ratelimit.Config) *testEnv {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	tx := db.NewGormTxRunner(gdb)

	cardRepo := repos.NewCardRepo(gdb, log)
	setRepo := repos.NewCardSetRepo(gdb, log)
	linkRepo := repos.NewCardToSetRepo(gdb, log)
	genRepo := repos.NewGenerationRepo(gdb, log)
	candRepo := repos.NewGeneratedCardRepo(gdb, log)
	jobRepo := repos.NewJobRunRepo(gdb, log)

	jobs := NewJobService(log, jobRepo)
	return &testEnv{
		db:       gdb,
		dbc:      dbctx.Context{Ctx: context.Background()},
		jobRepo:  jobRepo,
		genRepo:  genRepo,
		candRepo: candRepo,
		cards:    NewCardService(log, cardRepo),
		sets:     NewCardSetService(log, tx, setRepo, cardRepo, linkRepo),
		generations: NewGenerationService(log, tx, genRepo, candRepo, cardRepo, setRepo, linkRepo,
			jobs, ratelimit.NewMemory(limit), GenerationServiceConfig{}),
		jobs: jobs,
	}
}

func wantCode(t *testing.T, err error, code string) *apierr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("want error %s, got nil", code)
	}
	ae := apierr.From(err)
	if ae.Code != code {
		t.Fatalf("code: want=%s got=%s (%v)", code, ae.Code, err)
	}
	return ae
}

func strPtr(s string) *string { return &s }

func newUser() uuid.UUID { return uuid.New() }
