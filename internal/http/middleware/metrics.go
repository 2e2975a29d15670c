package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tenxcards/tenxcards-backend/internal/observability"
)

// Metrics instruments request counts and latency when metrics are enabled.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.APIInflight(1)
		defer m.APIInflight(-1)

		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		m.ObserveAPI(c.Request.Method, route, status, time.Since(start))
		if status == http.StatusTooManyRequests {
			m.IncRateLimited(route)
		}
	}
}
