package app

import (
	"github.com/tenxcards/tenxcards-backend/internal/http"
	httpH "github.com/tenxcards/tenxcards-backend/internal/http/handlers"
	httpMW "github.com/tenxcards/tenxcards-backend/internal/http/middleware"
	"github.com/tenxcards/tenxcards-backend/internal/observability"
	"github.com/tenxcards/tenxcards-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Card       *httpH.CardHandler
	CardSet    *httpH.CardSetHandler
	Generation *httpH.GenerationHandler
}

func wireHandlers(log *logger.Logger, services Services, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Card:       httpH.NewCardHandler(services.Card),
		CardSet:    httpH.NewCardSetHandler(services.CardSet),
		Generation: httpH.NewGenerationHandler(services.Generation, metrics),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, httpMW.AuthConfig{
			Secret:   cfg.JWTSecret,
			Audience: cfg.JWTAudience,
		}),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.ServiceName
	}
	return http.NewServer(log, http.RouterConfig{
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           metrics,
		AuthMiddleware:    middleware.Auth,
		HealthHandler:     handlers.Health,
		CardHandler:       handlers.Card,
		CardSetHandler:    handlers.CardSet,
		GenerationHandler: handlers.Generation,
	})
}
