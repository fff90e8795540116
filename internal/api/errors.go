// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/larsks/pubsub-example/internal/log"
)

var (
	// ErrMissingBus is returned by New when Deps.Bus is nil.
	ErrMissingBus = errors.New("api: bus is required")
	// ErrMissingWaiter is returned by New when Deps.Waiter is nil.
	ErrMissingWaiter = errors.New("api: waiter is required")
	// ErrMissingHealth is returned by New when Deps.Health is nil.
	ErrMissingHealth = errors.New("api: health manager is required")
)

// errorResponse is the JSON body of every non-2xx answer produced by this package.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers code with err's message and the request id.
func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, code, errorResponse{
		Error:     err.Error(),
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, err)
}
