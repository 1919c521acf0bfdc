package tsid

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	g := NewGenerator()

	prev := g.Next()
	for i := 0; i < 10000; i++ {
		id := g.Next()
		if id <= prev {
			t.Fatalf("Next() = %d, not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestNextClockMovesBack(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := &Generator{now: func() time.Time { return now }}

	first := g.Next()
	now = now.Add(-time.Hour)
	second := g.Next()

	if second <= first {
		t.Errorf("Expected monotonic id after clock skew, got %d then %d", first, second)
	}
}

func TestNextConcurrent(t *testing.T) {
	g := NewGenerator()
	ids := sync.Map{}
	var wg sync.WaitGroup

	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if _, dup := ids.LoadOrStore(g.Next(), true); dup {
					t.Error("Next() produced duplicate id")
				}
			}
		}()
	}
	wg.Wait()
}

func TestStringRoundTrip(t *testing.T) {
	g := NewGenerator()
	id := g.Next()

	s := String(id)
	if len(s) != 13 {
		t.Errorf("String() returned length %d, expected 13", len(s))
	}
	if !regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]+$`).MatchString(s) {
		t.Errorf("String() returned invalid Crockford Base32: %s", s)
	}

	back, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if back != id {
		t.Errorf("Parse(String(%d)) = %d", id, back)
	}
}

func TestParseAliases(t *testing.T) {
	a, _ := Parse("0O1IL")
	b, _ := Parse("00111")
	if a != b {
		t.Errorf("Expected O/I/L aliases to decode like 0/1, got %d and %d", a, b)
	}

	if _, err := Parse("ABC-1"); err != ErrInvalidCharacter {
		t.Errorf("Expected ErrInvalidCharacter, got %v", err)
	}
	if _, err := Parse("U"); err != ErrInvalidCharacter {
		t.Errorf("Expected ErrInvalidCharacter for U, got %v", err)
	}
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	g := &Generator{now: func() time.Time { return now }}

	got := Timestamp(g.Next())
	if !got.Equal(now) {
		t.Errorf("Timestamp() = %v, want %v", got, now)
	}
}
