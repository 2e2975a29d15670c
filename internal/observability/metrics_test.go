package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/cards", 200, time.Millisecond)
	m.ObserveJob("generation_process", "succeeded", time.Second)
	m.ObserveGeneration(types.GenerationCompleted, 5)
	m.IncReviewAction("accepted", 1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if NewMetrics(nil, MetricsConfig{}) != nil {
		t.Fatalf("disabled config must return nil")
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics(nil, MetricsConfig{Enabled: true})
	m.ObserveAPI("POST", "/api/generation/process-text", 202, 30*time.Millisecond)
	m.ObserveGeneration(types.GenerationCompleted, 5)
	m.ObserveGeneration(types.GenerationFailed, 0)
	m.IncReviewAction("rejected", 2)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`tenx_api_requests_total{method="POST",route="/api/generation/process-text",status="202"} 1`,
		`tenx_api_request_duration_seconds_bucket{method="POST",route="/api/generation/process-text",le="0.05"} 1`,
		`tenx_api_request_duration_seconds_bucket{method="POST",route="/api/generation/process-text",le="0.025"} 0`,
		`tenx_generations_total{status="completed"} 1`,
		`tenx_generations_total{status="failed"} 1`,
		`tenx_generated_cards_total 5`,
		`tenx_review_actions_total{action="rejected"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"route", "status"}, []string{`a"b`})
	if got != `{route="a\"b",status="unknown"}` {
		t.Fatalf("labelString: %s", got)
	}
	if withLe("", "1") != `{le="1"}` {
		t.Fatalf("withLe on empty labels")
	}
}

func TestCounter(t *testing.T) {
	var nilCounter *Counter
	nilCounter.Inc()
	if nilCounter.Value() != 0 {
		t.Fatalf("nil counter should read zero")
	}

	c := NewCounter("tenx_test_total", "Test counter.")
	c.Inc()
	c.Add(2.5)
	if c.Value() != 3.5 {
		t.Fatalf("value: got %g want 3.5", c.Value())
	}
	var buf bytes.Buffer
	if err := c.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	want := "# HELP tenx_test_total Test counter.\n# TYPE tenx_test_total counter\ntenx_test_total 3.5\n"
	if buf.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
