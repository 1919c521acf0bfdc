package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

var (
	// ErrRequestTimeout is the failure rendered when a request exceeds the
	// per-request timeout.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrRequestAborted is the failure rendered when a request is cut off
	// by a forced shutdown.
	ErrRequestAborted = errors.New("request aborted by shutdown")

	// errInternal replaces panic values on the wire.
	errInternal = errors.New("internal server error")
)

// BindError is returned by Start when the listener cannot be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// failureMessage is the envelope message for any request-scoped failure.
func failureMessage(r *http.Request) string {
	return r.Method + " " + r.URL.Path + " failed"
}

// writeFailure renders err as the failure envelope with HTTP 500. The error
// description travels in the data field.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	desc := err.Error()
	writeJSON(w, http.StatusInternalServerError, Response[string]{
		Code:    CodeFailure,
		Message: failureMessage(r),
		Data:    &desc,
	})
}

type errorSlotKey struct{}

// errorSlot collects the first failure raised below the error-mapping layer.
type errorSlot struct {
	err error
}

// raise hands err to the enclosing error-mapping layer, or renders it
// directly when there is none.
func raise(w http.ResponseWriter, r *http.Request, err error) {
	if slot, ok := r.Context().Value(errorSlotKey{}).(*errorSlot); ok {
		if slot.err == nil {
			slot.err = err
		}
		return
	}
	writeFailure(w, r, err)
}

// MapErrors converts failures raised by inner handlers, and panics, into the
// failure envelope. No raw error or stack trace reaches the client.
func MapErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := &errorSlot{}
		r = r.WithContext(context.WithValue(r.Context(), errorSlotKey{}, slot))

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				slog.Error("Handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"panic", p,
					"stack", string(debug.Stack()))
				slot.err = errInternal
			}

			if slot.err != nil {
				slog.Warn("Request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"error", slot.err)
				writeFailure(w, r, slot.err)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
