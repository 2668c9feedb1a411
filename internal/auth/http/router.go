package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veloramarket/velora/internal/auth/service"
	"github.com/veloramarket/velora/internal/auth/store"
	"github.com/veloramarket/velora/pkg/cookiex"
	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	bridge *cookiex.Bridge

	UserSessions   *service.SessionService
	SellerSessions *service.SessionService
}

func NewRouter(st store.Store, bridge *cookiex.Bridge, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		bridge:       bridge,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(ServiceName),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.mountSessions("/user", r.UserSessions)
	r.mountSessions("/seller", r.SellerSessions)
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// mountSessions registers one role's session surface under the given
// prefix. The gateway strips its own /api/auth mount before proxying, so
// the service sees /user/... and /seller/... directly.
func (r *Router) mountSessions(prefix string, svc *service.SessionService) {
	h := &SessionHandler{Service: svc, Bridge: r.bridge}

	// Unauthenticated credential endpoints get the strict budget: they
	// are the brute-force surface.
	r.Mux.Handle("POST "+prefix+"/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST "+prefix+"/verify-otp",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyOTP),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST "+prefix+"/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST "+prefix+"/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST "+prefix+"/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET "+prefix+"/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Authenticated endpoints trust the identity headers stamped by the
	// gateway; the service itself is not internet-facing.
	r.Mux.Handle("POST "+prefix+"/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.TrustForwardedIdentity(svc.Role),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET "+prefix+"/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.TrustForwardedIdentity(svc.Role),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
