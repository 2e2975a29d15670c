package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
	"github.com/tenxcards/tenxcards-backend/internal/platform/promptstyle"
)

type Config struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
}

// Client produces JSON objects with Gemini's JSON response mode.
type Client struct {
	log     *logger.Logger
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		log:     log.With("service", "GeminiClient"),
		client:  gc,
		model:   model,
		limiter: limiter,
	}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GenerateJSON asks for application/json output. Gemini has no strict schema
// mode for arbitrary maps, so the schema is sent as part of the instructions.
func (c *Client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	m := c.client.GenerativeModel(c.model)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{
		genai.Text(promptstyle.ApplySystem(system, "json") + "\n\nJSON schema (" + schemaName + "):\n" + string(schemaJSON)),
	}}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return nil, err
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini returned no text")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return obj, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// ErrorKind sorts a Gemini error into an EXTERNAL_SERVICE_ERROR kind.
func ErrorKind(err error) string {
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return apierr.KindUnavailable
	}
	msg := strings.ToLower(ge.Message + " " + ge.Body)
	switch {
	case ge.Code == http.StatusUnauthorized || ge.Code == http.StatusForbidden || strings.Contains(msg, "api key not valid"):
		return apierr.KindAuthentication
	case ge.Code == http.StatusTooManyRequests:
		return apierr.KindRateLimit
	case strings.Contains(msg, "token") && strings.Contains(msg, "exceed"):
		return apierr.KindContextLength
	case ge.Code == http.StatusNotFound:
		return apierr.KindInvalidModel
	default:
		return apierr.KindUnavailable
	}
}
