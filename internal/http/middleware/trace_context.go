package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursetree-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// TraceContext attaches request correlation ids and, once the handler has run, tags the
// request span with the session and owner it served.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		span := trace.SpanFromContext(c.Request.Context())
		traceID := ""
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		td := &ctxutil.TraceData{TraceID: traceID, RequestID: reqID}
		if strings.HasPrefix(c.FullPath(), "/api/sessions/:id") {
			td.SessionID = c.Param("id")
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)

		c.Next()

		attrs := []attribute.KeyValue{attribute.String("coursetree.request_id", reqID)}
		if td.SessionID != "" {
			attrs = append(attrs, attribute.String("coursetree.session_id", td.SessionID))
		}
		if owner := ctxutil.OwnerID(c.Request.Context()); owner != "" {
			attrs = append(attrs, attribute.String("coursetree.owner_id", owner))
		}
		span.SetAttributes(attrs...)
	}
}
