package decay

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

func testTracker(rate float64) *EntropyTracker {
	return NewEntropyTracker(rate, FixedClock{T: testNow}, rand.NewSource(1))
}

func TestApplyTemporalDecay(t *testing.T) {
	tr := testTracker(0.01)

	tests := []struct {
		name  string
		value float64
		since time.Time
		want  float64
	}{
		{"no elapsed time", 0.5, testNow, 0.5},
		{"future timestamp unchanged", 0.5, testNow.Add(time.Hour), 0.5},
		{"100 hours at 0.01/h", 0.5, testNow.Add(-100 * time.Hour), 0.5 * math.Exp(-1)},
		{"one hour", 0.8, testNow.Add(-time.Hour), 0.8 * math.Exp(-0.01)},
		{"zero value stays zero", 0, testNow.Add(-1000 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.ApplyTemporalDecay(tt.value, tt.since)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSessionTouchBounds(t *testing.T) {
	tr := testTracker(0.01)

	for i := 0; i < 100; i++ {
		before := 0.5
		after := tr.SessionTouch(before)
		delta := after - before
		if delta < entropySessionDelta || delta > entropySessionDelta+entropyEventMax {
			t.Fatalf("delta %v outside [%v, %v]", delta, entropySessionDelta, entropySessionDelta+entropyEventMax)
		}
	}

	// Near the ceiling the touch clamps.
	if got := tr.SessionTouch(0.99); got > 1.0 {
		t.Errorf("expected clamp at 1.0, got %v", got)
	}
}

func TestClassifyEntropy(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, EntropyDormant},
		{0.19, EntropyDormant},
		{0.2, EntropyRestless},
		{0.39, EntropyRestless},
		{0.4, EntropyAgitated},
		{0.6, EntropyFevered},
		{0.8, EntropyIncandescent},
		{1.0, EntropyIncandescent},
	}
	for _, tt := range tests {
		if got := ClassifyEntropy(tt.value); got != tt.want {
			t.Errorf("ClassifyEntropy(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSnippet(t *testing.T) {
	tr := testTracker(0.01)

	if got := tr.Snippet(0.1); got != "" {
		t.Errorf("expected empty snippet when dormant, got %q", got)
	}
	got := tr.Snippet(0.45)
	if !strings.Contains(got, EntropyAgitated) {
		t.Errorf("expected snippet to name the state, got %q", got)
	}
}

func TestPerturbBelowThreshold(t *testing.T) {
	tr := testTracker(0.01)
	text := "the rocket climbs its parabola over the Zone"

	for i := 0; i < 50; i++ {
		if got := tr.Perturb(text, 0.5); got != text {
			t.Fatalf("expected unchanged text below agitated, got %q", got)
		}
	}
	if got := tr.Perturb("", 0.9); got != "" {
		t.Errorf("expected empty text to stay empty, got %q", got)
	}
}

func TestPerturbAtHighEntropy(t *testing.T) {
	tr := testTracker(0.01)
	text := "the rocket climbs its parabola over the Zone tonight again"

	corrupted := 0
	for i := 0; i < 200; i++ {
		got := tr.Perturb(text, 1.0)
		if got != text {
			corrupted++
			if !strings.Contains(got, "[") {
				t.Fatalf("corruption should inject a bracketed artifact, got %q", got)
			}
		}
	}
	// At value 1.0 the corruption probability is capped at 0.8; over 200
	// trials some corruption is effectively certain.
	if corrupted == 0 {
		t.Error("expected at least one corrupted output at maximum entropy")
	}
}

func TestEntropyTrackerConcurrent(t *testing.T) {
	tr := testTracker(0.01)
	text := "the rocket climbs its parabola over the Zone tonight"

	// SessionTouch and Perturb share one rng; the race detector verifies the
	// guard while the bounds hold per call.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				delta := tr.SessionTouch(0.5) - 0.5
				if delta < entropySessionDelta || delta > entropySessionDelta+entropyEventMax {
					t.Errorf("concurrent touch delta %v out of bounds", delta)
					return
				}
				tr.Perturb(text, 0.9)
			}
		}()
	}
	wg.Wait()
}
