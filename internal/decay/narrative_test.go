package decay

import (
	"math"
	"strings"
	"testing"
)

func TestNewArcState(t *testing.T) {
	a := NewArcState()
	if a.Phase != PhaseRising {
		t.Errorf("expected rising phase, got %q", a.Phase)
	}
	if a.Momentum != 0.3 {
		t.Errorf("expected momentum 0.3, got %v", a.Momentum)
	}
}

func TestAdvanceMomentum(t *testing.T) {
	tests := []struct {
		name    string
		message string
		delta   float64
	}{
		{"depth trigger", "what is the meaning of all this", momentumDepthBoost},
		{"emotion trigger", "I miss the old days terribly", momentumEmotionBoost},
		{"neutral message", "pass the bananas", momentumDrift},
		{"depth beats emotion", "why do I love it here", momentumDepthBoost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArcState()
			next := a.Advance(tt.message)
			if math.Abs(next.Momentum-(a.Momentum+tt.delta)) > 1e-9 {
				t.Errorf("expected momentum %v, got %v", a.Momentum+tt.delta, next.Momentum)
			}
			if next.Messages != 1 {
				t.Errorf("expected message count 1, got %d", next.Messages)
			}
		})
	}
}

func TestArcPhaseTransitions(t *testing.T) {
	a := NewArcState()

	// Sustained depth drives the session to apex.
	for i := 0; i < 4; i++ {
		a = a.Advance("why does memory decay with time")
	}
	if a.Phase != PhaseApex {
		t.Fatalf("expected apex after sustained depth, got %q at momentum %v", a.Phase, a.Momentum)
	}

	// Neutral drift brings it down through falling.
	for i := 0; i < 9; i++ {
		a = a.Advance("ok")
	}
	if a.Phase != PhaseFalling {
		t.Fatalf("expected falling, got %q at momentum %v", a.Phase, a.Momentum)
	}

	// Further drift lands the impact.
	for i := 0; i < 6; i++ {
		a = a.Advance("ok")
	}
	if a.Phase != PhaseImpact {
		t.Fatalf("expected impact, got %q at momentum %v", a.Phase, a.Momentum)
	}

	// Impact is terminal for the session.
	a = a.Advance("why is the meaning of memory a dream")
	if a.Phase != PhaseImpact {
		t.Errorf("impact should be terminal, got %q", a.Phase)
	}
}

func TestMultipliersScaleWithMomentum(t *testing.T) {
	low := ArcState{Phase: PhaseApex, Momentum: 0}
	high := ArcState{Phase: PhaseApex, Momentum: 1}

	lm := low.Multipliers()
	hm := high.Multipliers()

	if hm.EntropyModifier <= lm.EntropyModifier {
		t.Error("entropy modifier should grow with momentum")
	}
	if hm.InsightBonus != phaseBase[PhaseApex].InsightBonus {
		t.Errorf("full momentum should give the unscaled base, got %v", hm.InsightBonus)
	}
	if lm.PreteriteChance != phaseBase[PhaseApex].PreteriteChance*0.5 {
		t.Errorf("zero momentum should halve the base, got %v", lm.PreteriteChance)
	}
}

func TestArcSnippet(t *testing.T) {
	quiet := ArcState{Phase: PhaseRising, Momentum: 0.1}
	if got := quiet.Snippet(); got != "" {
		t.Errorf("expected silent arc at low momentum, got %q", got)
	}

	loud := ArcState{Phase: PhaseApex, Momentum: 0.9}
	got := loud.Snippet()
	if !strings.Contains(got, PhaseApex) {
		t.Errorf("snippet should name the phase, got %q", got)
	}
}
