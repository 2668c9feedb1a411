package http

import (
	"net/http"

	"github.com/veloramarket/velora/pkg/httpx"
	"github.com/veloramarket/velora/pkg/slogx"
)

type healthResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// HealthHandler reports gateway liveness along with the request's
// correlation id so clients can confirm id propagation end to end.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Message:   "Welcome to " + ServiceName + "!",
			RequestID: slogx.RequestIDFromContext(r.Context()),
		})
	}
}
