package purchase

import "context"

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx for outgoing purchase API calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok {
		return token
	}
	return ""
}
