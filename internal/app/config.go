package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tenxcards/tenxcards-backend/internal/data/db"
	"github.com/tenxcards/tenxcards-backend/internal/platform/envutil"
)

const (
	GeneratorHeuristic = "heuristic"
	GeneratorOpenAI    = "openai"
	GeneratorGemini    = "gemini"
)

type Config struct {
	Env      string
	LogMode  string
	HTTPAddr string

	Postgres db.PostgresConfig

	JWTSecret   string
	JWTAudience string
	CORSOrigins []string

	GeneratorProvider string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITimeout     time.Duration
	OpenAIMaxRetries  int
	GeminiAPIKey      string
	GeminiModel       string
	LLMRequestsPerSec float64

	MinTextLength int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerMaxAttempts  int
	WorkerRetryDelay   time.Duration

	OtelEnabled     bool
	OtelEndpoint    string
	OtelHeaders     string
	OtelInsecure    bool
	OtelSampleRatio float64
	ServiceName     string
	ServiceVersion  string

	MetricsEnabled        bool
	MetricsAddr           string
	MetricsScrapeInterval time.Duration
}

// LoadConfig reads the process environment. A .env file and the YAML file
// named by CONFIG_FILE only fill variables that are not already set.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyYAMLDefaults(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Env:      envutil.String("APP_ENV", "development"),
		LogMode:  envutil.String("LOG_MODE", "development"),
		HTTPAddr: envutil.String("HTTP_ADDR", ":"+envutil.String("PORT", "8080")),

		Postgres: db.PostgresConfig{
			Host:            envutil.String("POSTGRES_HOST", "localhost"),
			Port:            envutil.String("POSTGRES_PORT", "5432"),
			User:            envutil.String("POSTGRES_USER", "postgres"),
			Password:        envutil.String("POSTGRES_PASSWORD", ""),
			Name:            envutil.String("POSTGRES_NAME", "tenxcards"),
			SSLMode:         envutil.String("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},

		JWTSecret:   envutil.String("AUTH_JWT_SECRET", ""),
		JWTAudience: envutil.String("AUTH_JWT_AUDIENCE", "authenticated"),
		CORSOrigins: splitList(envutil.String("CORS_ORIGINS", "")),

		GeneratorProvider: strings.ToLower(envutil.String("GENERATOR_PROVIDER", GeneratorHeuristic)),
		OpenAIAPIKey:      envutil.String("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:       envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:     envutil.Duration("OPENAI_TIMEOUT", 60*time.Second),
		OpenAIMaxRetries:  envutil.Int("OPENAI_MAX_RETRIES", 3),
		GeminiAPIKey:      envutil.String("GEMINI_API_KEY", ""),
		GeminiModel:       envutil.String("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMRequestsPerSec: envutil.Float("LLM_REQUESTS_PER_SECOND", 2),

		MinTextLength: envutil.Int("GENERATION_MIN_TEXT_LENGTH", 100),

		RateLimitRequests: envutil.Int("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   envutil.Duration("RATE_LIMIT_WINDOW", time.Minute),
		RedisAddr:         envutil.String("REDIS_ADDR", ""),
		RedisPassword:     envutil.String("REDIS_PASSWORD", ""),
		RedisDB:           envutil.Int("REDIS_DB", 0),

		WorkerConcurrency:  envutil.Int("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		WorkerMaxAttempts:  envutil.Int("WORKER_MAX_ATTEMPTS", 3),
		WorkerRetryDelay:   envutil.Duration("WORKER_RETRY_DELAY", 30*time.Second),

		OtelEnabled:     envutil.Bool("OTEL_ENABLED", false),
		OtelEndpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelHeaders:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OtelInsecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OtelSampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 1),
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "tenxcards-backend"),
		ServiceVersion:  envutil.String("SERVICE_VERSION", "dev"),

		MetricsEnabled:        envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:           envutil.String("METRICS_ADDR", ":9090"),
		MetricsScrapeInterval: envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	switch c.GeneratorProvider {
	case GeneratorHeuristic:
	case GeneratorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GENERATOR_PROVIDER=openai")
		}
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when GENERATOR_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown GENERATOR_PROVIDER %q", c.GeneratorProvider)
	}
	if c.MinTextLength < 1 {
		return fmt.Errorf("GENERATION_MIN_TEXT_LENGTH must be positive")
	}
	return nil
}

// applyYAMLDefaults reads a flat map of ENV_NAME: value pairs.
func applyYAMLDefaults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		var val string
		switch t := v.(type) {
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			val = strings.Join(parts, ",")
		default:
			val = fmt.Sprint(t)
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
