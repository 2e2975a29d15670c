package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/tenxcards/tenxcards-backend/internal/http/handlers"
	httpMW "github.com/tenxcards/tenxcards-backend/internal/http/middleware"
	"github.com/tenxcards/tenxcards-backend/internal/observability"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	CardHandler       *httpH.CardHandler
	CardSetHandler    *httpH.CardSetHandler
	GenerationHandler *httpH.GenerationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Generation workflow
	if h := cfg.GenerationHandler; h != nil {
		protected.POST("/generation/process-text", h.ProcessText)
		protected.GET("/generation", h.List)
		protected.GET("/generation/:id/status", h.Status)
		protected.GET("/generation/:id/results", h.Results)
		protected.POST("/generation/:id/accept", h.AcceptAll)
		protected.POST("/generation/:id/cards/:cardId/accept", h.AcceptCard)
		protected.POST("/generation/:id/cards/:cardId/reject", h.RejectCard)
		protected.POST("/generation/:id/finalize", h.Finalize)
	}

	// Cards
	if h := cfg.CardHandler; h != nil {
		protected.GET("/cards", h.List)
		protected.POST("/cards", h.Create)
		protected.GET("/cards/:id", h.Get)
		protected.PUT("/cards/:id", h.Update)
		protected.DELETE("/cards/:id", h.Delete)
	}

	// Card sets
	if h := cfg.CardSetHandler; h != nil {
		protected.GET("/card-sets", h.List)
		protected.POST("/card-sets", h.Create)
		protected.GET("/card-sets/:id", h.Get)
		protected.PUT("/card-sets/:id", h.Update)
		protected.DELETE("/card-sets/:id", h.Delete)
		protected.GET("/card-sets/:id/cards", h.ListCards)
		protected.POST("/card-sets/:id/cards", h.AddCards)
		protected.DELETE("/card-sets/:id/cards/:cardId", h.RemoveCard)
	}

	return r
}
