package cookiex

import (
	"net/http"
	"strings"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// EnsureAuthorization synthesizes an Authorization header from session
// cookies when the client did not send one. A client-supplied bearer header
// always wins. Refresh-token routes take the matching refresh cookie; every
// other route takes the access cookie of the role the route table prefers,
// falling back to the other role's cookie.
func (b *Bridge) EnsureAuthorization(r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		return
	}

	path := r.URL.Path

	if role, ok := b.refreshRouteRole(path); ok {
		if c, err := r.Cookie(refreshCookieName(role)); err == nil && c.Value != "" {
			r.Header.Set("Authorization", "Bearer "+c.Value)
		}
		return
	}

	primary := b.preferredRole(path)
	for _, role := range []jwtx.Role{primary, otherRole(primary)} {
		if c, err := r.Cookie(accessCookieName(role)); err == nil && c.Value != "" {
			r.Header.Set("Authorization", "Bearer "+c.Value)
			return
		}
	}
}

func (b *Bridge) refreshRouteRole(path string) (jwtx.Role, bool) {
	switch {
	case strings.HasPrefix(path, b.authPrefix+"/user/refresh-token"):
		return jwtx.RoleUser, true
	case strings.HasPrefix(path, b.authPrefix+"/seller/refresh-token"):
		return jwtx.RoleSeller, true
	}
	return "", false
}

// Middleware applies EnsureAuthorization to every request.
func (b *Bridge) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.EnsureAuthorization(r)
			next.ServeHTTP(w, r)
		})
	}
}
