package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates an API request with the session it touches. SessionID is set for
// /sessions/:id routes and for sessions created by the request.
type TraceData struct {
	TraceID   string
	RequestID string
	SessionID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// SetSessionID records the session a request resolved to. It is a no-op without trace data.
func SetSessionID(ctx context.Context, sessionID string) {
	if td := GetTraceData(ctx); td != nil && sessionID != "" {
		td.SessionID = sessionID
	}
}

// LogFields returns the non-empty correlation ids as logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.SessionID != "" {
		out = append(out, "session_id", td.SessionID)
	}
	return out
}
