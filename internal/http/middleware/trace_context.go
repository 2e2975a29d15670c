package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenxcards/tenxcards-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID     = "X-Trace-Id"
	HeaderRequestID   = "X-Request-Id"
	headerTraceParent = "traceparent"

	maxClientIDLen = 128
)

// AttachTraceContext gives every request a request id and a trace id, echoes
// both as response headers and stores them in the request context. The
// generation job payload copies them so worker logs share the ids.
//
// Trace id precedence: X-Trace-Id, the active OTEL span, a W3C traceparent
// header, then a fresh id.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := clientID(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		traceID := clientID(c.GetHeader(HeaderTraceID))
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
		if traceID == "" {
			traceID = traceIDFromParent(c.GetHeader(headerTraceParent))
		}
		if traceID == "" {
			traceID = newTraceID()
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(HeaderTraceID, traceID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Next()
	}
}

// clientID accepts a caller supplied id only when it is short and printable,
// since it ends up in logs and job payloads.
func clientID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxClientIDLen {
		return ""
	}
	for _, r := range v {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return v
}

// traceIDFromParent reads the trace id of a version-00 traceparent header.
func traceIDFromParent(h string) string {
	parts := strings.Split(strings.TrimSpace(h), "-")
	if len(parts) != 4 || parts[0] != "00" {
		return ""
	}
	id, err := trace.TraceIDFromHex(parts[1])
	if err != nil || !id.IsValid() {
		return ""
	}
	return id.String()
}

// newTraceID is a random id in the 32 hex digit trace id format.
func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
