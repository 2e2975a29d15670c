package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos"
	"github.com/tenxcards/tenxcards-backend/internal/data/repos/testutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ratelimit"
	"github.com/tenxcards/tenxcards-backend/internal/services"
)

type reviewCounter map[string]int

func (r reviewCounter) IncReviewAction(action string, n int) { r[action] += n }

type harness struct {
	t       *testing.T
	engine  *gin.Engine
	reviews reviewCounter
}

const testUserHeader = "X-Test-User"

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	tx := db.NewGormTxRunner(gdb)
	cardRepo := repos.NewCardRepo(gdb, log)
	setRepo := repos.NewCardSetRepo(gdb, log)
	linkRepo := repos.NewCardToSetRepo(gdb, log)
	genRepo := repos.NewGenerationRepo(gdb, log)
	candRepo := repos.NewGeneratedCardRepo(gdb, log)
	jobs := services.NewJobService(log, repos.NewJobRunRepo(gdb, log))

	reviews := reviewCounter{}
	cards := NewCardHandler(services.NewCardService(log, cardRepo))
	sets := NewCardSetHandler(services.NewCardSetService(log, tx, setRepo, cardRepo, linkRepo))
	gens := NewGenerationHandler(services.NewGenerationService(log, tx, genRepo, candRepo, cardRepo, setRepo, linkRepo,
		jobs, ratelimit.NewMemory(ratelimit.Config{Requests: 100, Window: time.Minute}), services.GenerationServiceConfig{}), reviews)

	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler().HealthCheck)
	api := r.Group("/api", func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader(testUserHeader)); err == nil {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	})
	api.GET("/cards", cards.List)
	api.POST("/cards", cards.Create)
	api.GET("/cards/:id", cards.Get)
	api.PUT("/cards/:id", cards.Update)
	api.DELETE("/cards/:id", cards.Delete)
	api.GET("/card-sets", sets.List)
	api.POST("/card-sets", sets.Create)
	api.GET("/card-sets/:id", sets.Get)
	api.DELETE("/card-sets/:id", sets.Delete)
	api.POST("/card-sets/:id/cards", sets.AddCards)
	api.DELETE("/card-sets/:id/cards/:cardId", sets.RemoveCard)
	api.POST("/generation/process-text", gens.ProcessText)
	api.GET("/generation/:id/status", gens.Status)
	api.GET("/generation/:id/results", gens.Results)
	api.POST("/generation/:id/finalize", gens.Finalize)

	return &harness{t: t, engine: r, reviews: reviews}
}

func (h *harness) do(user uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(testUserHeader, user.String())
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)
	rec := h.do(uuid.Nil, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestCardLifecycle(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	rec := h.do(user, http.MethodPost, "/api/cards", map[string]string{
		"front_content": "What is ATP?",
		"back_content":  "The energy currency of the cell.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: code=%d body=%s", rec.Code, rec.Body.String())
	}
	card := decode[map[string]any](t, rec)
	id, _ := card["id"].(string)
	if card["source_type"] != "manual" {
		t.Fatalf("source_type: got=%v", card["source_type"])
	}

	rec = h.do(user, http.MethodPut, "/api/cards/"+id, map[string]string{"back_content": "Adenosine triphosphate."})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec)["back_content"]; got != "Adenosine triphosphate." {
		t.Fatalf("back_content: got=%v", got)
	}

	if rec = h.do(uuid.New(), http.MethodGet, "/api/cards/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: want 404 got=%d", rec.Code)
	}
	if rec = h.do(user, http.MethodDelete, "/api/cards/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204 got=%d", rec.Code)
	}
	if rec = h.do(user, http.MethodGet, "/api/cards/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: want 404 got=%d", rec.Code)
	}
}

func TestCardValidationDetails(t *testing.T) {
	h := newHarness(t)
	rec := h.do(uuid.New(), http.MethodPost, "/api/cards", map[string]string{"back_content": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 got=%d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Code != "VALIDATION_ERROR" {
		t.Fatalf("code: got=%s", body.Code)
	}
	if body.Details["front_content"] != "required" {
		t.Fatalf("details: got=%v", body.Details)
	}

	rec = h.do(uuid.New(), http.MethodGet, "/api/cards?source_type=robot", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: want 400 got=%d", rec.Code)
	}
	if rec = h.do(uuid.New(), http.MethodGet, "/api/cards/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want 400 got=%d", rec.Code)
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	h := newHarness(t)
	rec := h.do(uuid.Nil, http.MethodGet, "/api/cards", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got=%d", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Code != "UNAUTHORIZED" {
		t.Fatalf("code: got=%s", body.Code)
	}
}

func TestCardSetMembership(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	rec := h.do(user, http.MethodPost, "/api/card-sets", map[string]string{"name": "Cell Biology"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create set: code=%d body=%s", rec.Code, rec.Body.String())
	}
	setID, _ := decode[map[string]any](t, rec)["id"].(string)

	if rec = h.do(user, http.MethodPost, "/api/card-sets", map[string]string{"name": "Cell Biology"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate set: want 409 got=%d", rec.Code)
	}

	var ids []string
	for _, front := range []string{"Q1", "Q2"} {
		rec = h.do(user, http.MethodPost, "/api/cards", map[string]string{"front_content": front, "back_content": "A"})
		id, _ := decode[map[string]any](t, rec)["id"].(string)
		ids = append(ids, id)
	}
	rec = h.do(user, http.MethodPost, "/api/card-sets/"+setID+"/cards", map[string]any{"card_ids": ids})
	if rec.Code != http.StatusOK {
		t.Fatalf("add cards: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec)["added_count"]; got != float64(2) {
		t.Fatalf("added_count: got=%v", got)
	}

	rec = h.do(user, http.MethodPost, "/api/card-sets/"+setID+"/cards", map[string]any{"card_ids": []string{"nope"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad ids: want 400 got=%d", rec.Code)
	}

	rec = h.do(user, http.MethodDelete, "/api/card-sets/"+setID+"/cards/"+ids[0], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: code=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec)["card_deleted"]; got != true {
		t.Fatalf("card_deleted: got=%v", got)
	}
	if rec = h.do(user, http.MethodGet, "/api/cards/"+ids[0], nil); rec.Code != http.StatusNotFound {
		t.Fatalf("orphan card should be gone, got=%d", rec.Code)
	}
}

func TestProcessTextAccepted(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()
	text := bytes.Repeat([]byte("Photosynthesis converts light into chemical energy. "), 4)

	rec := h.do(user, http.MethodPost, "/api/generation/process-text", map[string]any{"text": string(text)})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("process-text: code=%d body=%s", rec.Code, rec.Body.String())
	}
	res := decode[map[string]any](t, rec)
	genID, _ := res["generation_id"].(string)
	if genID == "" || res["status"] != "pending" {
		t.Fatalf("unexpected response: %v", res)
	}
	if secs, _ := res["estimated_time_seconds"].(float64); secs <= 0 {
		t.Fatalf("estimated_time_seconds: got=%v", res["estimated_time_seconds"])
	}

	rec = h.do(user, http.MethodGet, "/api/generation/"+genID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: code=%d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "pending" {
		t.Fatalf("status: got=%v", got)
	}
	if rec = h.do(uuid.New(), http.MethodGet, "/api/generation/"+genID+"/status", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign status: want 404 got=%d", rec.Code)
	}

	rec = h.do(user, http.MethodPost, "/api/generation/process-text", map[string]any{"text": "too short"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short text: want 400 got=%d", rec.Code)
	}
}

func TestFinalizeRejectsEmptySelection(t *testing.T) {
	h := newHarness(t)
	rec := h.do(uuid.New(), http.MethodPost, "/api/generation/"+uuid.NewString()+"/finalize", map[string]any{
		"name":           "Biology Basics",
		"accepted_cards": []string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400 got=%d", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Details["accepted_cards"] == nil {
		t.Fatalf("details: got=%v", body.Details)
	}
}
