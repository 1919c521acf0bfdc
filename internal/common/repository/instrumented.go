package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pipelinehub",
			Subsystem: "store",
			Name:      "call_seconds",
			Help:      "Time spent in pipeline store calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"store", "call"},
	)

	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipelinehub",
			Subsystem: "store",
			Name:      "calls_total",
			Help:      "Pipeline store calls by outcome.",
		},
		[]string{"store", "call", "outcome"},
	)
)

// SlowCall is the duration above which a successful call is logged.
const SlowCall = 100 * time.Millisecond

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeDuplicate = "duplicate_key"
	OutcomeMissingID = "missing_id"
	OutcomeTimeout   = "timeout"
	OutcomeCanceled  = "canceled"
	OutcomeOther     = "error"
)

// Outcome maps err onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrDuplicateKey):
		return OutcomeDuplicate
	case errors.Is(err, ErrMissingID):
		return OutcomeMissingID
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeOther
	}
}

// observe records a finished call. It is deferred with the call's start time
// and a pointer to its named error result.
func observe(ctx context.Context, store, call string, begin time.Time, errp *error) {
	took := time.Since(begin)
	err := *errp
	outcome := Outcome(err)

	callSeconds.WithLabelValues(store, call).Observe(took.Seconds())
	callsTotal.WithLabelValues(store, call, outcome).Inc()

	attrs := []any{"store", store, "call", call, "took", took}
	switch outcome {
	case OutcomeOK:
		if took > SlowCall {
			slog.WarnContext(ctx, "Slow store call", attrs...)
		}
	case OutcomeNotFound:
		slog.DebugContext(ctx, "Store call found nothing", append(attrs, "error", err)...)
	case OutcomeDuplicate, OutcomeMissingID:
		slog.WarnContext(ctx, "Store call rejected", append(attrs, "error", err)...)
	default:
		slog.ErrorContext(ctx, "Store call failed", append(attrs, "error", err)...)
	}
}

// Instrumented decorates a Repository, timing and counting every call under
// the given store label.
type Instrumented[T any, ID comparable] struct {
	store string
	inner Repository[T, ID]
}

// NewInstrumented wraps inner.
func NewInstrumented[T any, ID comparable](store string, inner Repository[T, ID]) *Instrumented[T, ID] {
	return &Instrumented[T, ID]{store: store, inner: inner}
}

func (r *Instrumented[T, ID]) FindAll(ctx context.Context) (_ []T, err error) {
	defer observe(ctx, r.store, "find_all", time.Now(), &err)
	return r.inner.FindAll(ctx)
}

func (r *Instrumented[T, ID]) FindByID(ctx context.Context, id ID) (_ *T, err error) {
	defer observe(ctx, r.store, "find_by_id", time.Now(), &err)
	return r.inner.FindByID(ctx, id)
}

func (r *Instrumented[T, ID]) Save(ctx context.Context, entity T) (_ T, err error) {
	defer observe(ctx, r.store, "save", time.Now(), &err)
	return r.inner.Save(ctx, entity)
}

func (r *Instrumented[T, ID]) Update(ctx context.Context, entity T) (_ T, err error) {
	defer observe(ctx, r.store, "update", time.Now(), &err)
	return r.inner.Update(ctx, entity)
}

func (r *Instrumented[T, ID]) Delete(ctx context.Context, entity T) (err error) {
	defer observe(ctx, r.store, "delete", time.Now(), &err)
	return r.inner.Delete(ctx, entity)
}

func (r *Instrumented[T, ID]) DeleteByID(ctx context.Context, id ID) (err error) {
	defer observe(ctx, r.store, "delete_by_id", time.Now(), &err)
	return r.inner.DeleteByID(ctx, id)
}

func (r *Instrumented[T, ID]) SaveOrUpdate(ctx context.Context, entity T) (_ T, err error) {
	defer observe(ctx, r.store, "save_or_update", time.Now(), &err)
	return r.inner.SaveOrUpdate(ctx, entity)
}
