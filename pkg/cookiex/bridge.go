// Package cookiex is the only place that knows concrete session cookie
// names, paths, and attributes. The gateway uses its inbound surface to
// turn browser cookies into Authorization headers; the auth service uses
// its outbound surface to write and clear sessions.
package cookiex

import (
	"net/http"
	"strings"
	"time"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// Cookie names are part of the wire contract with the storefronts.
const (
	AccessTokenUserCookie    = "access_token_user"
	AccessTokenSellerCookie  = "access_token_seller"
	RefreshTokenUserCookie   = "refresh_token_user"
	RefreshTokenSellerCookie = "refresh_token_seller"
	UserStatusCookie         = "user_status"
	SellerStatusCookie       = "seller_status"
)

// RefreshCookiePath restricts refresh tokens to the auth routes as the
// browser sees them, i.e. the gateway-facing prefix.
const RefreshCookiePath = "/api/auth"

const (
	accessTokenMaxAge  = 15 * time.Minute
	refreshTokenMaxAge = 7 * 24 * time.Hour
)

// Policy carries the environment-dependent cookie attributes. Cross-site
// storefront deployments need SameSite=None (which requires Secure); local
// development runs on Lax without TLS.
type Policy struct {
	Secure   bool
	SameSite http.SameSite
}

// NewPolicy derives the cookie policy from the runtime environment.
func NewPolicy(env string) Policy {
	if env == "prod" || env == "production" {
		return Policy{Secure: true, SameSite: http.SameSiteNoneMode}
	}
	return Policy{Secure: false, SameSite: http.SameSiteLaxMode}
}

// Route declares which role's access cookie a path prefix prefers. The
// table replaces the old path-regex coupling: routing and cookie selection
// now share one explicit declaration.
type Route struct {
	Prefix string
	Role   jwtx.Role
}

// Bridge translates between cookies and Authorization headers.
type Bridge struct {
	policy     Policy
	authPrefix string // gateway-facing auth mount, e.g. "/api/auth"
	routes     []Route
}

func NewBridge(policy Policy, authPrefix string, routes []Route) *Bridge {
	return &Bridge{policy: policy, authPrefix: authPrefix, routes: routes}
}

// preferredRole picks the access-cookie role for a path; first matching
// prefix wins and user is the default.
func (b *Bridge) preferredRole(path string) jwtx.Role {
	for _, route := range b.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route.Role
		}
	}
	return jwtx.RoleUser
}

func accessCookieName(role jwtx.Role) string {
	if role == jwtx.RoleSeller {
		return AccessTokenSellerCookie
	}
	return AccessTokenUserCookie
}

func refreshCookieName(role jwtx.Role) string {
	if role == jwtx.RoleSeller {
		return RefreshTokenSellerCookie
	}
	return RefreshTokenUserCookie
}

func statusCookieName(role jwtx.Role) string {
	if role == jwtx.RoleSeller {
		return SellerStatusCookie
	}
	return UserStatusCookie
}

func otherRole(role jwtx.Role) jwtx.Role {
	if role == jwtx.RoleSeller {
		return jwtx.RoleUser
	}
	return jwtx.RoleSeller
}
