package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/tenxcards/tenxcards-backend/internal/domain"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled        bool
	ScrapeInterval time.Duration
}

// Metrics is nil when disabled. Every method is safe on a nil receiver.
type Metrics struct {
	scrapeInterval time.Duration

	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec

	jobRuns     *CounterVec
	jobDuration *HistogramVec
	queueDepth  *GaugeVec

	generations    *CounterVec
	generatedCards *Counter
	reviewActions  *CounterVec
	rateLimited    *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

func NewMetrics(log *logger.Logger, cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	if cfg.ScrapeInterval <= 0 {
		cfg.ScrapeInterval = 10 * time.Second
	}
	m := &Metrics{
		scrapeInterval: cfg.ScrapeInterval,
		apiRequests:    NewCounterVec("tenx_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"tenx_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("tenx_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("tenx_llm_requests_total", "LLM requests by model/status.", []string{"model", "status"}),
		llmLatency: NewHistogramVec(
			"tenx_llm_request_duration_seconds",
			"LLM request latency in seconds by model.",
			[]string{"model"},
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		jobRuns: NewCounterVec("tenx_job_runs_total", "Executed job runs by type/status.", []string{"job_type", "status"}),
		jobDuration: NewHistogramVec(
			"tenx_job_run_duration_seconds",
			"Job run duration in seconds by type.",
			[]string{"job_type"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		queueDepth:     NewGaugeVec("tenx_job_queue_depth", "Job rows by status.", []string{"status"}),
		generations:    NewCounterVec("tenx_generations_total", "Finished generations by status.", []string{"status"}),
		generatedCards: NewCounter("tenx_generated_cards_total", "Candidate flashcards produced."),
		reviewActions:  NewCounterVec("tenx_review_actions_total", "Candidate review actions by action.", []string{"action"}),
		rateLimited:    NewCounterVec("tenx_rate_limited_total", "Requests refused by the rate limiter by route.", []string{"route"}),
		pgStats:        NewGaugeVec("tenx_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:        NewGauge("tenx_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:      NewGauge("tenx_redis_ping_seconds", "Redis ping latency in seconds."),
	}
	if log != nil {
		log.Info("Metrics enabled")
	}
	return m
}

func (m *Metrics) writers() []interface{ WritePrometheus(io.Writer) error } {
	return []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.jobRuns, m.jobDuration, m.queueDepth,
		m.generations, m.generatedCards, m.reviewActions, m.rateLimited,
		m.pgStats, m.redisUp, m.redisPing,
	}
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, mw := range m.writers() {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

// Serve exposes the metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, log *logger.Logger, addr string) error {
	if m == nil || strings.TrimSpace(addr) == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model)
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobDuration.Observe(dur.Seconds(), jobType)
}

func (m *Metrics) ObserveGeneration(status types.GenerationStatus, cards int) {
	if m == nil {
		return
	}
	m.generations.Inc(string(status))
	if cards > 0 {
		m.generatedCards.Add(float64(cards))
	}
}

func (m *Metrics) IncReviewAction(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reviewActions.Add(float64(n), action)
}

func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.Inc(route)
}

// StartCollectors polls pool stats, redis health and queue depth every scrape
// interval until ctx is done. rdb may be nil.
func (m *Metrics) StartCollectors(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb goredis.UniversalClient) {
	if m == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectDB(ctx, log, db)
				m.collectRedis(ctx, log, rdb)
			}
		}
	}()
}

func (m *Metrics) collectDB(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	}

	for _, s := range []string{types.JobStatusQueued, types.JobStatusRunning, types.JobStatusSucceeded, types.JobStatusFailed} {
		m.queueDepth.Set(0, s)
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		log.Warn("Job queue depth query failed", "error", err)
		return
	}
	for _, row := range rows {
		m.queueDepth.Set(float64(row.Count), row.Status)
	}
}

func (m *Metrics) collectRedis(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if rdb == nil {
		return
	}
	start := time.Now()
	if err := rdb.Ping(ctx).Err(); err != nil {
		m.redisUp.Set(0)
		log.Warn("Redis ping failed", "error", err)
		return
	}
	m.redisUp.Set(1)
	m.redisPing.Set(time.Since(start).Seconds())
}
