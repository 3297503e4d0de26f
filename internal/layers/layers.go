// Package layers implements the thematic context layers: four instances of
// one contract that detect lexical triggers in the current query, accumulate
// a bounded score, and emit a framed snippet only above an activation floor.
// Layers are additive, independently toggleable, and never required for
// assembly to succeed.
package layers

import (
	"fmt"
	"strings"
)

// DefaultActivation is the minimum score before a layer emits anything.
const DefaultActivation = 0.25

// Trigger is one weighted lexical rule.
type Trigger struct {
	Term   string
	Weight float64
}

// Layer is one thematic detector.
type Layer struct {
	Name       string
	Frame      string // template for the emitted snippet; %s = classification
	Triggers   []Trigger
	Activation float64
	Enabled    bool
}

// Score accumulates trigger weights over the query, bounded to [0,1].
func (l *Layer) Score(query string) float64 {
	lower := strings.ToLower(query)
	score := 0.0
	for _, t := range l.Triggers {
		if strings.Contains(lower, t.Term) {
			score += t.Weight
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// classify names the intensity band for the snippet frame.
func classify(score float64) string {
	switch {
	case score >= 0.75:
		return "overwhelming"
	case score >= 0.5:
		return "strong"
	default:
		return "faint"
	}
}

// Emit returns the framed snippet for the query, or "" when the layer is
// disabled or the score stays under the activation floor.
func (l *Layer) Emit(query string) string {
	if !l.Enabled {
		return ""
	}
	activation := l.Activation
	if activation <= 0 {
		activation = DefaultActivation
	}
	score := l.Score(query)
	if score < activation {
		return ""
	}
	return fmt.Sprintf("[%s: %s]", l.Name, fmt.Sprintf(l.Frame, classify(score)))
}

// Defaults returns the four standard layers, all enabled.
func Defaults() []*Layer {
	return []*Layer{
		{
			Name:    "surveillance",
			Frame:   "a %s sense of being watched; cameras and files hover at the edge of the scene",
			Enabled: true,
			Triggers: []Trigger{
				{"watch", 0.2}, {"camera", 0.25}, {"track", 0.2}, {"record", 0.15},
				{"listen", 0.15}, {"follow", 0.15}, {"spy", 0.3}, {"surveil", 0.35},
				{"they know", 0.3}, {"file on", 0.25},
			},
		},
		{
			Name:    "resistance",
			Frame:   "a %s pull against the System and its routing of desire; sympathy runs to the preterite",
			Enabled: true,
			Triggers: []Trigger{
				{"control", 0.2}, {"system", 0.15}, {"corporate", 0.2}, {"order", 0.1},
				{"rules", 0.15}, {"escape", 0.2}, {"refuse", 0.25}, {"resist", 0.3},
				{"bureaucra", 0.25}, {"cartel", 0.3},
			},
		},
		{
			Name:    "synchronicity",
			Frame:   "a %s accumulation of coincidence; patterns insist on being read",
			Enabled: true,
			Triggers: []Trigger{
				{"coincidence", 0.3}, {"pattern", 0.2}, {"sign", 0.15}, {"connected", 0.2},
				{"fate", 0.25}, {"meant to", 0.2}, {"again", 0.1}, {"everywhere", 0.15},
				{"strange", 0.15},
			},
		},
		{
			Name:    "counterforce",
			Frame:   "a %s alignment with the scattered and unchosen; improvised solidarity against the grid",
			Enabled: true,
			Triggers: []Trigger{
				{"together", 0.2}, {"help", 0.1}, {"us", 0.05}, {"underground", 0.3},
				{"hidden", 0.2}, {"forgotten", 0.25}, {"left behind", 0.3}, {"passed over", 0.3},
				{"lost", 0.15},
			},
		},
	}
}

// EmitAll concatenates the active layers' snippets for a query.
func EmitAll(layerSet []*Layer, query string) string {
	var out []string
	for _, l := range layerSet {
		if snippet := l.Emit(query); snippet != "" {
			out = append(out, snippet)
		}
	}
	return strings.Join(out, "\n")
}
