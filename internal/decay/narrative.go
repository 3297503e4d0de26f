package decay

import (
	"fmt"
	"strings"
)

// Narrative arc phases.
const (
	PhaseRising  = "rising"
	PhaseApex    = "apex"
	PhaseFalling = "falling"
	PhaseImpact  = "impact"
)

// Momentum update deltas and phase-transition thresholds.
const (
	momentumDepthBoost   = 0.15
	momentumEmotionBoost = 0.10
	momentumDrift        = -0.05
	apexThreshold        = 0.8
	fallingThreshold     = 0.5
	impactThreshold      = 0.2
)

// ArcState is the per-session narrative state machine.
type ArcState struct {
	Phase    string  `json:"phase"`
	Momentum float64 `json:"momentum"`
	Messages int     `json:"messages"`
}

// NewArcState starts a session rising with neutral momentum.
func NewArcState() ArcState {
	return ArcState{Phase: PhaseRising, Momentum: 0.3}
}

var depthTriggers = []string{
	"why", "meaning", "death", "time", "memory", "dream", "real", "truth",
	"believe", "soul", "afraid", "alone", "gravity", "history",
}

var emotionTriggers = []string{
	"love", "hate", "miss", "hurt", "happy", "sad", "angry", "scared",
	"beautiful", "terrible", "wonderful", "lost",
}

// Advance updates momentum from one user message and applies any
// phase transition. Heuristics boost for depth and emotional engagement and
// decay otherwise.
func (a ArcState) Advance(message string) ArcState {
	lower := strings.ToLower(message)

	delta := momentumDrift
	for _, t := range depthTriggers {
		if strings.Contains(lower, t) {
			delta = momentumDepthBoost
			break
		}
	}
	if delta == momentumDrift {
		for _, t := range emotionTriggers {
			if strings.Contains(lower, t) {
				delta = momentumEmotionBoost
				break
			}
		}
	}

	a.Momentum = clamp01(a.Momentum + delta)
	a.Messages++

	switch a.Phase {
	case PhaseRising:
		if a.Momentum >= apexThreshold {
			a.Phase = PhaseApex
		}
	case PhaseApex:
		if a.Momentum < fallingThreshold {
			a.Phase = PhaseFalling
		}
	case PhaseFalling:
		if a.Momentum < impactThreshold {
			a.Phase = PhaseImpact
		} else if a.Momentum >= apexThreshold {
			a.Phase = PhaseApex
		}
	case PhaseImpact:
		// Terminal for the session; the rocket has come down.
	}

	return a
}

// Multipliers are the phase-derived secondary effects, each scaled by
// momentum: how much entropy leaks through, how likely an insight lands, and
// how likely a preterite memory resurfaces.
type Multipliers struct {
	EntropyModifier float64
	InsightBonus    float64
	PreteriteChance float64
}

var phaseBase = map[string]Multipliers{
	PhaseRising:  {EntropyModifier: 0.8, InsightBonus: 0.05, PreteriteChance: 0.02},
	PhaseApex:    {EntropyModifier: 1.2, InsightBonus: 0.20, PreteriteChance: 0.10},
	PhaseFalling: {EntropyModifier: 1.0, InsightBonus: 0.10, PreteriteChance: 0.05},
	PhaseImpact:  {EntropyModifier: 1.5, InsightBonus: 0.15, PreteriteChance: 0.15},
}

// Multipliers returns the phase multipliers scaled by current momentum.
func (a ArcState) Multipliers() Multipliers {
	base := phaseBase[a.Phase]
	scale := 0.5 + 0.5*a.Momentum
	return Multipliers{
		EntropyModifier: base.EntropyModifier * scale,
		InsightBonus:    base.InsightBonus * scale,
		PreteriteChance: base.PreteriteChance * scale,
	}
}

// Snippet renders the arc's context contribution. Below minimal momentum the
// arc stays silent.
func (a ArcState) Snippet() string {
	if a.Momentum < 0.25 {
		return ""
	}
	return fmt.Sprintf("[Narrative arc: %s phase, momentum %.2f. Shape the register of the reply accordingly.]", a.Phase, a.Momentum)
}
