package decay

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Entropy constants. The scalar lives in [0,1], decays exponentially with
// elapsed real time, and climbs with each session plus stochastic events.
const (
	DefaultEntropyDecayRate = 0.01 // per hour
	entropySessionDelta     = 0.03
	entropyEventMax         = 0.04
	entropyFloor            = 0.0
	entropyCeiling          = 1.0
)

// Entropy state names, ascending.
const (
	EntropyDormant      = "dormant"
	EntropyRestless     = "restless"
	EntropyAgitated     = "agitated"
	EntropyFevered      = "fevered"
	EntropyIncandescent = "incandescent"
)

// EntropyTracker computes lazy entropy decay and session accumulation.
// Safe for concurrent use; the rng is guarded by mu.
type EntropyTracker struct {
	DecayRate float64 // per hour
	Clock     Clock
	mu        sync.Mutex
	rng       *rand.Rand
}

// NewEntropyTracker builds a tracker with the given decay rate per hour.
// A nil source seeds from the clock.
func NewEntropyTracker(decayRate float64, clock Clock, src rand.Source) *EntropyTracker {
	if decayRate <= 0 {
		decayRate = DefaultEntropyDecayRate
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if src == nil {
		src = rand.NewSource(clock.Now().UnixNano())
	}
	return &EntropyTracker{
		DecayRate: decayRate,
		Clock:     clock,
		rng:       rand.New(src),
	}
}

// ApplyTemporalDecay returns the entropy value decayed for the hours elapsed
// between since and now: value * exp(-decayRate * hours). A timestamp in the
// future returns the value unchanged.
func (t *EntropyTracker) ApplyTemporalDecay(value float64, since time.Time) float64 {
	now := t.Clock.Now()
	if !since.Before(now) {
		return value
	}
	hours := now.Sub(since).Hours()
	decayed := value * math.Exp(-t.DecayRate*hours)
	if decayed < entropyFloor {
		return entropyFloor
	}
	return decayed
}

// SessionTouch returns the entropy value after one completed session: the base
// delta plus a randomized event effect, clamped to [0,1].
func (t *EntropyTracker) SessionTouch(value float64) float64 {
	t.mu.Lock()
	event := t.rng.Float64() * entropyEventMax
	t.mu.Unlock()
	value += entropySessionDelta + event
	return clamp01(value)
}

// ClassifyEntropy maps an entropy value onto its named state.
func ClassifyEntropy(value float64) string {
	switch {
	case value < 0.2:
		return EntropyDormant
	case value < 0.4:
		return EntropyRestless
	case value < 0.6:
		return EntropyAgitated
	case value < 0.8:
		return EntropyFevered
	default:
		return EntropyIncandescent
	}
}

// artifact fragments injected at high entropy, by rough category.
var artifactFragments = map[string][]string{
	"static": {
		"[signal degrades momentarily]",
		"[a hiss under the words]",
		"[carrier wave wobbles]",
	},
	"bleed": {
		"[another conversation bleeds through, then recedes]",
		"[someone else's sentence, half-heard]",
	},
	"loss": {
		"[several words fall out of the record]",
		"[the tape has been spliced here]",
	},
}

// Perturb corrupts an output fragment according to the current entropy level.
// Below agitated it returns the text unchanged. Above it, corruption
// probability and severity scale continuously with the level.
func (t *EntropyTracker) Perturb(text string, value float64) string {
	if value < 0.6 || text == "" {
		return text
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Probability ramps from 0 at 0.6 to 0.8 at 1.0.
	p := (value - 0.6) * 2.0
	if p > 0.8 {
		p = 0.8
	}
	if t.rng.Float64() >= p {
		return text
	}

	categories := []string{"static", "bleed", "loss"}
	cat := categories[t.rng.Intn(len(categories))]
	frags := artifactFragments[cat]
	frag := frags[t.rng.Intn(len(frags))]

	words := strings.Fields(text)
	if len(words) < 4 {
		return text + " " + frag
	}
	at := 1 + t.rng.Intn(len(words)-2)
	out := append([]string{}, words[:at]...)
	out = append(out, frag)
	out = append(out, words[at:]...)
	return strings.Join(out, " ")
}

// Snippet renders the entropy layer's context contribution, or "" below the
// activation floor.
func (t *EntropyTracker) Snippet(value float64) string {
	state := ClassifyEntropy(value)
	if state == EntropyDormant {
		return ""
	}
	return fmt.Sprintf("[Instability: %s (%.2f). Let the edges of the voice fray in proportion.]", state, value)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
