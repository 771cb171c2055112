package shardroute

import "context"

type contextKey string

const (
	// skipRoutingKey marks a context whose statements are passed through
	// without resolving sharding conditions.
	skipRoutingKey contextKey = "shardroute_skip"
)

// WithoutRouting returns a context whose statements bypass route resolution.
func WithoutRouting(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRoutingKey, true)
}

func routingSkipped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	skip, _ := ctx.Value(skipRoutingKey).(bool)
	return skip
}
