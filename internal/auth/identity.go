package auth

import (
	"context"
	"strings"
	"time"
)

type contextKey string

const (
	authorizationKey contextKey = "authorization"
	identityKey      contextKey = "identity"
)

// Identity is the caller derived from a verified token. It lives for one request.
type Identity struct {
	Subject   string
	Audience  []string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Claims    map[string]any
}

// WithAuthorization records the raw Authorization header of the current request.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authorizationKey, header)
}

// AuthorizationFrom returns the header stored by WithAuthorization.
func AuthorizationFrom(ctx context.Context) string {
	if v, ok := ctx.Value(authorizationKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithIdentity returns a new context carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom retrieves the identity attached by the guard.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
