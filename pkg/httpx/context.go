package httpx

import (
	"context"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// AuthContext is the resolved identity attached to a request once
// authentication succeeds. It is the only identity representation handlers
// and downstream services ever see.
type AuthContext struct {
	PrincipalID string
	Role        jwtx.Role
}

type authCtxKey struct{}

func ContextWithAuth(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, auth)
}

// AuthFromContext reports the authenticated principal, if any.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authCtxKey{}).(AuthContext)
	return auth, ok
}
