package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func decodeEnvelope(t *testing.T, body []byte) Response[string] {
	t.Helper()
	var resp Response[string]
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestTimeoutRendersFailureEnvelope(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Timeout(20 * time.Millisecond))
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		_, _ = w.Write([]byte("late"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, CodeFailure, resp.Code)
	assert.Equal(t, "GET /slow failed", resp.Message)
	require.NotNil(t, resp.Data)
	assert.Contains(t, *resp.Data, "request timed out")
	assert.NotContains(t, rec.Body.String(), "late")
}

func TestTimeoutAbortedRequest(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Timeout(time.Second))
	r.Get("/wait", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wait", nil).WithContext(ctx))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec.Body.Bytes())
	require.NotNil(t, resp.Data)
	assert.Equal(t, ErrRequestAborted.Error(), *resp.Data)
}

func TestTimeoutPassesResponseThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Timeout(time.Second))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Item", chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("item " + chi.URLParam(r, "id")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("X-Item"))
	assert.Equal(t, "item 42", rec.Body.String())
}

func TestTimeoutRepanicsInServingGoroutine(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Timeout(time.Second))
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	assert.PanicsWithValue(t, "handler exploded", func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
}

func TestTimeoutWriterDiscardsLateWrites(t *testing.T) {
	tw := &timeoutWriter{header: make(http.Header)}
	tw.WriteHeader(http.StatusCreated)
	tw.WriteHeader(http.StatusTeapot)
	_, err := tw.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, tw.code)

	tw.timedOut = true
	_, err = tw.Write([]byte("late"))
	assert.ErrorIs(t, err, http.ErrHandlerTimeout)
	assert.Equal(t, "ok", tw.buf.String())
}

func TestTraceAssignsRequestID(t *testing.T) {
	var seen string
	h := Trace(noop.NewTracerProvider().Tracer("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestTraceKeepsIncomingRequestID(t *testing.T) {
	var seen string
	h := Trace(noop.NewTracerProvider().Tracer("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}

func TestRequestIDEmptyWithoutTrace(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}
