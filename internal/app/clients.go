package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tenxcards/tenxcards-backend/internal/platform/redis"
	"github.com/tenxcards/tenxcards-backend/internal/modules/flashcards"
	"github.com/tenxcards/tenxcards-backend/internal/observability"
	"github.com/tenxcards/tenxcards-backend/internal/platform/gemini"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
	"github.com/tenxcards/tenxcards-backend/internal/platform/openai"
	"github.com/tenxcards/tenxcards-backend/internal/platform/ratelimit"
)

type Clients struct {
	Redis     *goredis.Client
	Gemini    *gemini.Client
	Generator flashcards.Generator
	Limiter   ratelimit.Limiter
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	limit := ratelimit.Config{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(ctx, log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Limiter = ratelimit.NewRedis(rdb, "tenx:ratelimit:", limit)
	} else {
		log.Warn("REDIS_ADDR not set; rate limits are per process")
		out.Limiter = ratelimit.NewMemory(limit)
	}

	switch cfg.GeneratorProvider {
	case GeneratorOpenAI:
		client, err := openai.NewClient(log, openai.Config{
			APIKey:            cfg.OpenAIAPIKey,
			BaseURL:           cfg.OpenAIBaseURL,
			Model:             cfg.OpenAIModel,
			Timeout:           cfg.OpenAITimeout,
			MaxRetries:        cfg.OpenAIMaxRetries,
			RequestsPerSecond: cfg.LLMRequestsPerSec,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.Generator = flashcards.NewLLMGenerator(log, client, openai.ErrorKind).WithObserver(metrics)
	case GeneratorGemini:
		client, err := gemini.NewClient(ctx, log, gemini.Config{
			APIKey:            cfg.GeminiAPIKey,
			Model:             cfg.GeminiModel,
			RequestsPerSecond: cfg.LLMRequestsPerSec,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init gemini client: %w", err)
		}
		out.Gemini = client
		out.Generator = flashcards.NewLLMGenerator(log, client, gemini.ErrorKind).WithObserver(metrics)
	default:
		out.Generator = flashcards.NewHeuristicGenerator()
	}
	log.Info("Flashcard generator ready", "provider", cfg.GeneratorProvider, "model", out.Generator.Model())
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Gemini != nil {
		_ = c.Gemini.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
