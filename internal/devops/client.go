// Package devops is a client for the third-party DevOps platform API.
package devops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Request headers carrying the caller's credentials.
const (
	HeaderAccessToken = "X-DEVOPS-ACCESS-TOKEN"
	HeaderUserID      = "X-DEVOPS-UID"
)

const (
	pipelinesPath = "/projects/CCI/api/service/open/pipeline_get"
	pageSize      = 100

	// Error bodies are read up to this size.
	maxErrorBody = 64 << 10
)

// ErrUnexpectedStatus is wrapped by APIError and matches any non-2xx reply.
var ErrUnexpectedStatus = errors.New("unexpected DevOps API status")

// APIError is a non-success reply from the DevOps API.
type APIError struct {
	StatusCode int
	Project    string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "message is empty"
	}
	return fmt.Sprintf("get project %s pipelines failed.  %s", e.Project, msg)
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }

// PipelineSource lists the pipelines of a DevOps project.
type PipelineSource interface {
	GetProjectPipelines(ctx context.Context, projectID string) ([]PipelineInfo, error)
}

var (
	clientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipelinehub",
			Subsystem: "devops",
			Name:      "requests_total",
			Help:      "Total requests made to the DevOps API",
		},
		[]string{"result"}, // result: success, http_error, transport_error, circuit_open
	)

	clientDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pipelinehub",
			Subsystem: "devops",
			Name:      "request_duration_seconds",
			Help:      "DevOps API request duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// 0 = closed, 1 = open, 2 = half-open
	clientBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pipelinehub",
			Subsystem: "devops",
			Name:      "circuit_breaker_state",
			Help:      "DevOps API circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)
)

// ClientConfig configures the DevOps client
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	UserID      string

	// Timeout for each HTTP request
	Timeout time.Duration

	// RateLimit in requests per second. Zero disables limiting.
	RateLimit float64

	// Circuit breaker settings
	BreakerInterval    time.Duration // Stats window
	BreakerTimeout     time.Duration // Time in open state before half-open
	BreakerMinRequests uint32        // Min requests before evaluating ratio
	BreakerRatio       float64       // Failure ratio to trip
}

// DefaultClientConfig returns defaults for everything but the credentials.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            10 * time.Second,
		RateLimit:          5,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     10 * time.Second,
		BreakerMinRequests: 5,
		BreakerRatio:       0.5,
	}
}

// Client calls the DevOps API. It is safe for concurrent use.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

var _ PipelineSource = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		cfg:  cfg,
		http: httpClient,
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "devops-api",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerRatio
		},
		// Only transport failures and 5xx replies count against the breaker.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			switch to {
			case gobreaker.StateClosed:
				clientBreakerState.Set(0)
			case gobreaker.StateOpen:
				clientBreakerState.Set(1)
			case gobreaker.StateHalfOpen:
				clientBreakerState.Set(2)
			}
		},
	})

	return c
}

// GetProjectPipelines fetches the first page of pipelines of a project. A
// successful reply without page data yields an empty list.
func (c *Client) GetProjectPipelines(ctx context.Context, projectID string) ([]PipelineInfo, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("get project pipelines failed: %w", err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchPipelines(ctx, projectID)
	})
	clientDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var apiErr *APIError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			clientRequests.WithLabelValues("circuit_open").Inc()
			slog.Warn("Circuit breaker open", "project", projectID)
			return nil, fmt.Errorf("get project pipelines failed: %w", err)
		case errors.As(err, &apiErr):
			clientRequests.WithLabelValues("http_error").Inc()
		default:
			clientRequests.WithLabelValues("transport_error").Inc()
		}
		return nil, err
	}

	clientRequests.WithLabelValues("success").Inc()
	return result.([]PipelineInfo), nil
}

func (c *Client) fetchPipelines(ctx context.Context, projectID string) ([]PipelineInfo, error) {
	query := url.Values{}
	query.Set("projectCode", projectID)
	query.Set("page", "1")
	query.Set("pageSize", strconv.Itoa(pageSize))

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + pipelinesPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get project pipelines failed: %w", err)
	}
	req.Header.Set(HeaderAccessToken, c.cfg.AccessToken)
	req.Header.Set(HeaderUserID, c.cfg.UserID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get project pipelines failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Message *string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err := json.Unmarshal(raw, &body); err != nil {
			slog.Debug("DevOps error body is not JSON", "status", resp.StatusCode, "error", err)
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Project: projectID}
		if body.Message != nil {
			apiErr.Message = *body.Message
		}
		return nil, apiErr
	}

	var body apiBody[PageRecords[PipelineInfo]]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("convert body to pipeline struct failed: %w", err)
	}

	if body.Data == nil || body.Data.Records == nil {
		return []PipelineInfo{}, nil
	}
	return body.Data.Records, nil
}
