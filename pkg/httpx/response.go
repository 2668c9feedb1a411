package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for responses that carry tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Validatable is implemented by request DTOs that can check their own shape.
// Validate returns nil or an *Error carrying structured field details.
type Validatable interface {
	Validate() error
}

// DecodeValid decodes a JSON body into T and runs its validation. Both
// failure modes come back as 422 validation errors.
func DecodeValid[T Validatable](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, NewValidationError("Invalid request body", nil)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}
