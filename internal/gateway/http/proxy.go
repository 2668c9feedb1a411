package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/slogx"
)

// Upstream mounts one internal service under a public path prefix.
type Upstream struct {
	Prefix string
	Target *url.URL
}

// NewServiceProxy builds a reverse proxy to one upstream. The public
// prefix is stripped so services see their own routes, cookies never
// cross the trust boundary, and the resolved identity plus request id are
// stamped on every forwarded request. Client-supplied identity headers
// are dropped unconditionally: only the gateway may assert them.
func NewServiceProxy(prefix string, target *url.URL, timeout time.Duration) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			if pr.Out.URL.Path == "" {
				pr.Out.URL.Path = "/"
			}
			pr.Out.Host = pr.In.Host

			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del(httpx.HeaderUserID)
			pr.Out.Header.Del(httpx.HeaderUserRole)

			if auth, ok := httpx.AuthFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(httpx.HeaderUserID, auth.PrincipalID)
				pr.Out.Header.Set(httpx.HeaderUserRole, string(auth.Role))
			}
			if id := slogx.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(slogx.RequestIDHeader, id)
			}
		},
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slogx.FromContext(r.Context()).Error("upstream request failed",
				"error", err, "prefix", prefix)

			he := httpx.NewUnavailableError("Upstream service unavailable")
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				he = &httpx.Error{
					Code:    httpx.CodeUnavailable,
					Message: "Upstream service timed out",
					Status:  http.StatusGatewayTimeout,
				}
			}
			httpx.WriteError(w, r, ServiceName, he)
		},
	}
}

func isTimeout(err error) bool {
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}
