package flashcards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

// JSONGenerator is satisfied by the OpenAI and Gemini clients.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
	Model() string
}

// Observer records outbound model calls.
type Observer interface {
	ObserveLLMRequest(model, status string, dur time.Duration)
}

// LLMGenerator asks a language model for cards through a strict JSON schema.
type LLMGenerator struct {
	log      *logger.Logger
	client   JSONGenerator
	classify func(error) string
	obs      Observer
}

// NewLLMGenerator wraps client. classify maps client errors onto
// EXTERNAL_SERVICE_ERROR kinds; nil treats every failure as unavailable.
func NewLLMGenerator(log *logger.Logger, client JSONGenerator, classify func(error) string) *LLMGenerator {
	if classify == nil {
		classify = func(error) string { return apierr.KindUnavailable }
	}
	return &LLMGenerator{
		log:      log.With("component", "LLMGenerator"),
		client:   client,
		classify: classify,
	}
}

// WithObserver sets the observer and returns g.
func (g *LLMGenerator) WithObserver(obs Observer) *LLMGenerator {
	g.obs = obs
	return g
}

func (g *LLMGenerator) Model() string { return g.client.Model() }

const systemPrompt = `Create concise question-and-answer flashcards from the user's study text.
Each front is a single question of at most 200 characters.
Each back answers it in at most 500 characters.
Cover the most important facts first and never repeat a question.`

func cardsSchema(target int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cards": map[string]any{
				"type":     "array",
				"maxItems": target,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"front": map[string]any{"type": "string"},
						"back":  map[string]any{"type": "string"},
					},
					"required":             []string{"front", "back"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"cards"},
		"additionalProperties": false,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, text string, target int) ([]Candidate, error) {
	if target < 1 {
		target = 1
	}
	user := fmt.Sprintf("Create up to %d flashcards from this text:\n\n%s", target, strings.TrimSpace(text))
	start := time.Now()
	obj, err := g.client.GenerateJSON(ctx, systemPrompt, user, "flashcards", cardsSchema(target))
	if g.obs != nil {
		status := "ok"
		if err != nil {
			status = g.classify(err)
		}
		g.obs.ObserveLLMRequest(g.client.Model(), status, time.Since(start))
	}
	if err != nil {
		kind := g.classify(err)
		g.log.Warn("LLM generation failed", "model", g.client.Model(), "kind", kind, "error", err)
		return nil, apierr.External(kind, err)
	}
	out := normalize(parseCards(obj), target)
	if len(out) == 0 {
		return nil, apierr.External(apierr.KindUnavailable, fmt.Errorf("model returned no usable cards"))
	}
	return out, nil
}

func parseCards(obj map[string]any) []Candidate {
	raw, _ := obj["cards"].([]any)
	out := make([]Candidate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		front, _ := m["front"].(string)
		back, _ := m["back"].(string)
		out = append(out, Candidate{Front: front, Back: back})
	}
	return out
}
