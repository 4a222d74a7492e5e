package chat

import "context"

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying the request-scoped
// correlation id. Set once per request by the HTTP middleware; the
// orchestrator and the web-search tool only read it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the request's correlation id, or "" when
// none was established.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
