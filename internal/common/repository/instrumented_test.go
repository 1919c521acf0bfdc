package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type item struct {
	ID   int
	Name string
}

// memRepo is a map-backed Repository used to exercise the decorator.
type memRepo struct {
	items map[int]item
	next  int
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int]item)}
}

func (m *memRepo) FindAll(ctx context.Context) ([]item, error) {
	out := make([]item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *memRepo) FindByID(ctx context.Context, id int) (*item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memRepo) Save(ctx context.Context, e item) (item, error) {
	m.next++
	e.ID = m.next
	m.items[e.ID] = e
	return e, nil
}

func (m *memRepo) Update(ctx context.Context, e item) (item, error) {
	if _, ok := m.items[e.ID]; !ok {
		return item{}, fmt.Errorf("item %d: %w", e.ID, ErrNotFound)
	}
	m.items[e.ID] = e
	return e, nil
}

func (m *memRepo) Delete(ctx context.Context, e item) error {
	return m.DeleteByID(ctx, e.ID)
}

func (m *memRepo) DeleteByID(ctx context.Context, id int) error {
	delete(m.items, id)
	return nil
}

func (m *memRepo) SaveOrUpdate(ctx context.Context, e item) (item, error) {
	if e.ID == 0 {
		return m.Save(ctx, e)
	}
	return m.Update(ctx, e)
}

func TestInstrumentedDelegates(t *testing.T) {
	ctx := context.Background()
	var repo Repository[item, int] = NewInstrumented[item, int]("test_delegates", newMemRepo())

	saved, err := repo.Save(ctx, item{Name: "build"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("Expected an assigned id")
	}

	found, err := repo.FindByID(ctx, saved.ID)
	if err != nil || found == nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	missing, err := repo.FindByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("Expected nil for missing id, got %v, %v", missing, err)
	}

	saved.Name = "deploy"
	if _, err := repo.SaveOrUpdate(ctx, saved); err != nil {
		t.Fatalf("SaveOrUpdate failed: %v", err)
	}

	if err := repo.DeleteByID(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil || len(all) != 0 {
		t.Errorf("Expected empty repository, got %v, %v", all, err)
	}

	if got := testutil.ToFloat64(callsTotal.WithLabelValues("test_delegates", "save", OutcomeOK)); got != 1 {
		t.Errorf("Expected 1 successful save, got %v", got)
	}
	if got := testutil.ToFloat64(callsTotal.WithLabelValues("test_delegates", "find_by_id", OutcomeOK)); got != 2 {
		t.Errorf("Expected 2 successful lookups, got %v", got)
	}
}

func TestInstrumentedRecordsErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewInstrumented[item, int]("test_errors", newMemRepo())

	_, err := repo.Update(ctx, item{ID: 42})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if got := testutil.ToFloat64(callsTotal.WithLabelValues("test_errors", "update", OutcomeNotFound)); got != 1 {
		t.Errorf("Expected 1 not_found error, got %v", got)
	}
}

func TestInstrumentedTimesEveryCall(t *testing.T) {
	ctx := context.Background()
	repo := NewInstrumented[item, int]("test_timing", newMemRepo())

	if _, err := repo.Save(ctx, item{Name: "build"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Delete(ctx, item{ID: 1}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// One histogram series per call name.
	if got := testutil.CollectAndCount(callSeconds, "pipelinehub_store_call_seconds"); got < 2 {
		t.Errorf("Expected at least 2 timed series, got %d", got)
	}
	if got := testutil.ToFloat64(callsTotal.WithLabelValues("test_timing", "delete", OutcomeOK)); got != 1 {
		t.Errorf("Expected 1 successful delete, got %v", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("wrap: %w", ErrNotFound), OutcomeNotFound},
		{ErrDuplicateKey, OutcomeDuplicate},
		{ErrMissingID, OutcomeMissingID},
		{context.DeadlineExceeded, OutcomeTimeout},
		{context.Canceled, OutcomeCanceled},
		{errors.New("disk full"), OutcomeOther},
	}

	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
