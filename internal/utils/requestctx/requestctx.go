package requestctx

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionIDKey
)

// WithRequestID tags ctx with the inbound request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSessionID tags ctx with the authenticated session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func SessionID(ctx context.Context) string {
	return stringValue(ctx, sessionIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}
