package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext ties a request to its span and to the audit trail.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// NewTraceContext derives ids from the span in ctx. Without a recording
// provider the span context is invalid; traceID (or a fresh id) is used then.
// An empty requestID is generated.
func NewTraceContext(ctx context.Context, requestID, traceID string) *TraceContext {
	t := &TraceContext{TraceID: traceID, RequestID: requestID}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		t.TraceID = sc.TraceID().String()
		t.SpanID = sc.SpanID().String()
	}
	if t.TraceID == "" {
		t.TraceID = uuid.NewString()
	}
	if t.SpanID == "" {
		t.SpanID = uuid.NewString()[:16]
	}
	if t.RequestID == "" {
		t.RequestID = uuid.NewString()
	}
	return t
}

// LogFields returns the key-value pairs every log line of the request carries.
func (t *TraceContext) LogFields() []any {
	return []any{"trace_id", t.TraceID, "span_id", t.SpanID, "request_id", t.RequestID}
}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns the request id recorded on audit entries, or "".
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}
