package httpx

import (
	"errors"
	"net/http"

	"github.com/veloramarket/velora/pkg/jwtx"
	"github.com/veloramarket/velora/pkg/slogx"
)

// Error codes shared across services. These are part of the client contract.
const (
	CodeValidation  = "validation_error"
	CodeAuth        = "auth_error"
	CodeForbidden   = "forbidden"
	CodeNotFound    = "not_found"
	CodeInternal    = "internal_error"
	CodeUnavailable = "service_unavailable"
)

// Error is the single wire shape for failures. Handlers return these (or
// sentinel errors mapped into them) and WriteError fills in the service and
// correlation id at the boundary.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"statusCode"`
	Service   string `json:"service,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewValidationError reports malformed input or a business-rule rejection.
// Details, when present, carries field-level findings.
func NewValidationError(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Status: http.StatusUnprocessableEntity, Details: details}
}

// NewUnauthorizedError is deliberately generic: clients must not learn
// whether a token was expired, malformed, or wrong-audience.
func NewUnauthorizedError() *Error {
	return &Error{Code: CodeAuth, Message: "Unauthorized", Status: http.StatusUnauthorized}
}

func NewForbiddenError() *Error {
	return &Error{Code: CodeForbidden, Message: "Forbidden", Status: http.StatusForbidden}
}

func NewNotFoundError(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func NewInternalError() *Error {
	return &Error{Code: CodeInternal, Message: "Something went wrong, please try again!", Status: http.StatusInternalServerError}
}

func NewUnavailableError(message string) *Error {
	return &Error{Code: CodeUnavailable, Message: message, Status: http.StatusBadGateway}
}

// WriteError normalizes err at the HTTP boundary and responds. Unknown
// errors become opaque 500s; internal detail only reaches the logs.
func WriteError(w http.ResponseWriter, r *http.Request, service string, err error) {
	log := slogx.FromContext(r.Context())

	var he *Error
	switch {
	case errors.As(err, &he):
		// already shaped; fall through to fill envelope fields
	case errors.Is(err, jwtx.ErrInvalidToken):
		he = NewUnauthorizedError()
	default:
		log.Error("unhandled error", "error", err)
		he = NewInternalError()
	}

	out := *he
	out.Service = service
	out.RequestID = slogx.RequestIDFromContext(r.Context())

	if out.Status >= http.StatusInternalServerError {
		log.Error("request failed", "code", out.Code, "status", out.Status)
	}

	WriteJSON(w, out.Status, out)
}

// Recover converts panics into opaque 500 responses instead of tearing down
// the connection.
func Recover(service string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slogx.FromContext(r.Context()).Error("panic recovered", "panic", rec)
					WriteError(w, r, service, NewInternalError())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
