package authclient

import "context"

type ctxKey string

const accessTokenKey ctxKey = "dx.accessToken"

// WithAccessToken stores the bearer token used by authenticated calls.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

// AccessTokenFromCtx fetches the bearer token from context.
func AccessTokenFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accessTokenKey).(string)
	return v, ok && v != ""
}
