package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veloramarket/velora/pkg/cookiex"
	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/jwtx"
	"github.com/veloramarket/velora/pkg/slogx"
)

// ServiceName tags the gateway's own responses and error envelopes.
const ServiceName = "api-gateway"

// Router is the edge pipeline: request ids and logging, panic recovery,
// cookie-to-bearer promotion, optional authentication, then the rate
// limiting tiers, and finally the per-service proxies.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger
}

func NewRouter(verifier jwtx.Verifier, bridge *cookiex.Bridge, logger *slog.Logger) *Router {
	r := &Router{
		Mux:    http.NewServeMux(),
		logger: logger,
	}

	// Order matters: the bridge must run before authentication so cookie
	// sessions are seen, and authentication before the rate limiter so
	// authenticated traffic gets the larger budget.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(ServiceName),
		bridge.Middleware(),
		httpx.OptionalAuthn(verifier),
		httpx.EdgeRateLimit(httpx.EdgeAnonymousLimit, httpx.EdgeAuthenticatedLimit),
		httpx.SlowDown(httpx.DefaultSlowDown),
	}

	return r
}

// ApplyRoutes mounts the health endpoint and one proxy per upstream.
func (r *Router) ApplyRoutes(upstreams []Upstream, proxyTimeout time.Duration) {
	r.Mux.Handle("GET /health", HealthHandler())

	for _, u := range upstreams {
		r.Mux.Handle(u.Prefix+"/", NewServiceProxy(u.Prefix, u.Target, proxyTimeout))
	}
}

// ServeHTTP implements http.Handler for Router and applies the edge
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
