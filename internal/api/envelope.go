package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope codes
const (
	CodeSuccess = 0
	CodeFailure = -1
)

// Response is the uniform body of every business HTTP response. Code 0
// means success; any other code carries no data.
type Response[T any] struct {
	Code    int    `json:"code" jsonschema:"example=0"`
	Message string `json:"message" jsonschema:"example=success"`
	Data    *T     `json:"data"`
}

// Success wraps data in a code 0 envelope.
func Success[T any](data T) Response[T] {
	return Response[T]{Code: CodeSuccess, Message: "success", Data: &data}
}

// Failure returns an envelope with a nonzero code and no data.
func Failure[T any](code int, message string) Response[T] {
	if code == CodeSuccess {
		code = CodeFailure
	}
	return Response[T]{Code: code, Message: message}
}

// Status maps the envelope code to an HTTP status: 200 for success, 500
// for anything else.
func (r Response[T]) Status() int {
	if r.Code == CodeSuccess {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response body", "error", err)
	}
}

// notFound is the fallback for unmatched routes. It is the only place a 404
// is produced.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Failure[string](CodeFailure, r.Method+" "+r.URL.Path+" Not Found"))
}

// HandlerFunc is a business handler returning an envelope. A returned error
// is rendered by the error-mapping layer as a failure envelope.
type HandlerFunc[T any] func(r *http.Request) (Response[T], error)

// Handle adapts a HandlerFunc to net/http.
func Handle[T any](h HandlerFunc[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h(r)
		if err != nil {
			raise(w, r, err)
			return
		}
		writeJSON(w, resp.Status(), resp)
	}
}
