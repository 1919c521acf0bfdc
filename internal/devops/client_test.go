package devops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = server.URL + "/"
	cfg.AccessToken = "token"
	cfg.UserID = "alice"
	cfg.RateLimit = 0
	return NewClient(cfg, server.Client())
}

func TestGetProjectPipelines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/CCI/api/service/open/pipeline_get", r.URL.Path)
		assert.Equal(t, "demo", r.URL.Query().Get("projectCode"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "token", r.Header.Get(HeaderAccessToken))
		assert.Equal(t, "alice", r.Header.Get(HeaderUserID))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"traceId": "abc",
			"data": {
				"count": 2, "page": 1, "pageSize": 100, "totalPages": 1,
				"records": [
					{"projectId": "demo", "pipelineId": "p-1", "pipelineName": "build",
					 "latestBuildNum": 42, "canManualStartup": true, "latestBuildStartTime": 1700000000000},
					{"projectId": "demo", "pipelineId": "p-2", "pipelineName": "deploy", "delete": true}
				]
			}
		}`))
	})

	pipelines, err := client.GetProjectPipelines(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, pipelines, 2)

	assert.Equal(t, "p-1", pipelines[0].PipelineID)
	assert.Equal(t, "build", pipelines[0].PipelineName)
	assert.Equal(t, 42, pipelines[0].LatestBuildNum)
	assert.True(t, pipelines[0].CanManualStartup)
	assert.Equal(t, int64(1700000000000), pipelines[0].LatestBuildStartTime)
	assert.True(t, pipelines[1].Delete)
}

func TestGetProjectPipelinesNoData(t *testing.T) {
	for name, body := range map[string]string{
		"null data":    `{"status":"ok","data":null}`,
		"missing data": `{"status":"ok"}`,
		"no records":   `{"status":"ok","data":{"count":0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			pipelines, err := client.GetProjectPipelines(context.Background(), "demo")
			require.NoError(t, err)
			assert.NotNil(t, pipelines)
			assert.Empty(t, pipelines)
		})
	}
}

func TestGetProjectPipelinesErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status":"error","message":"no permission","data":"denied"}`))
	})

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Equal(t, "get project demo pipelines failed.  no permission", err.Error())
}

func TestGetProjectPipelinesErrorWithoutMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.Error(t, err)
	assert.Equal(t, "get project demo pipelines failed.  message is empty", err.Error())
}

func TestGetProjectPipelinesMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	})

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convert body to pipeline struct failed")
}

func TestGetProjectPipelinesTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg, nil)

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get project pipelines failed")
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < int(client.cfg.BreakerMinRequests); i++ {
		_, _ = client.GetProjectPipelines(context.Background(), "demo")
	}

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(client.cfg.BreakerMinRequests), calls.Load(), "open breaker must not reach the server")
}

func TestCircuitBreakerIgnoresClientErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < int(client.cfg.BreakerMinRequests)*2; i++ {
		_, err := client.GetProjectPipelines(context.Background(), "demo")
		require.True(t, errors.Is(err, ErrUnexpectedStatus))
	}
	assert.Equal(t, gobreaker.StateClosed, client.breaker.State())
}

func TestRateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.RateLimit = 0.5
	client := NewClient(cfg, server.Client())

	_, err := client.GetProjectPipelines(context.Background(), "demo")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.GetProjectPipelines(ctx, "demo")
	require.Error(t, err, "second call within the rate window cannot wait two seconds")
}
