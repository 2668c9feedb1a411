package httpx

import (
	"net/http"
	"slices"
	"strings"

	"github.com/veloramarket/velora/pkg/jwtx"
	"github.com/veloramarket/velora/pkg/slogx"
)

// Identity headers the gateway forwards to internal services. Services
// behind the gateway may trust these instead of re-verifying the JWT.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// BearerToken extracts the Authorization bearer value, if any.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")), true
}

// OptionalAuthn authenticates when a bearer header is present and lets the
// request through unauthenticated when it isn't. A bearer header that fails
// verification terminates with 401: a client that presents credentials must
// present valid ones.
func OptionalAuthn(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("jwt verify failed", "error", err)
				WriteError(w, r, "", NewUnauthorizedError())
				return
			}

			ctx := ContextWithAuth(r.Context(), AuthContext{
				PrincipalID: claims.Subject,
				Role:        claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthn verifies the bearer token and optionally restricts roles.
func RequireAuthn(v jwtx.Verifier, roles ...jwtx.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				WriteError(w, r, "", NewUnauthorizedError())
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("jwt verify failed", "error", err)
				WriteError(w, r, "", NewUnauthorizedError())
				return
			}

			auth := AuthContext{PrincipalID: claims.Subject, Role: claims.Role}
			if len(roles) > 0 && !slices.Contains(roles, auth.Role) {
				WriteError(w, r, "", NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), auth)))
		})
	}
}

// TrustForwardedIdentity authenticates from the gateway's x-user-id and
// x-user-role headers. This is the cheap service-to-service mode reserved
// for deployments where only the gateway can reach the service; it must
// never be mounted on an internet-facing listener.
func TrustForwardedIdentity(roles ...jwtx.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := r.Header.Get(HeaderUserID)
			role, err := jwtx.ParseRole(r.Header.Get(HeaderUserRole))
			if principalID == "" || err != nil {
				WriteError(w, r, "", NewUnauthorizedError())
				return
			}

			auth := AuthContext{PrincipalID: principalID, Role: role}
			if len(roles) > 0 && !slices.Contains(roles, role) {
				WriteError(w, r, "", NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), auth)))
		})
	}
}
