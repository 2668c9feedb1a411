package cookiex

import (
	"net/http"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// WriteSession sets the three session cookies together: the short-lived
// access token on /, the refresh token scoped to the auth routes, and a
// non-httpOnly status cookie the storefront reads for routing.
func (b *Bridge) WriteSession(w http.ResponseWriter, role jwtx.Role, pair jwtx.TokenPair, status string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName(role),
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(accessTokenMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName(role),
		Value:    pair.RefreshToken,
		Path:     RefreshCookiePath,
		MaxAge:   int(refreshTokenMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})

	// Session cookie on purpose: the status is coarse and refetched on the
	// next login anyway.
	http.SetCookie(w, &http.Cookie{
		Name:     statusCookieName(role),
		Value:    status,
		Path:     "/",
		HttpOnly: false,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})
}

// ClearSession expires all three cookies. Attributes must match the ones
// used when setting them or the browser silently keeps the cookie.
func (b *Bridge) ClearSession(w http.ResponseWriter, role jwtx.Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName(role),
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     statusCookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   b.policy.Secure,
		SameSite: b.policy.SameSite,
	})
}
