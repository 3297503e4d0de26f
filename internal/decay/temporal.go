package decay

import "fmt"

// Gap bands for elapsed time since last contact, ascending.
const (
	GapNone        = "none"
	GapBrief       = "brief"
	GapNotable     = "notable"
	GapSignificant = "significant"
	GapMajor       = "major"
	GapExtended    = "extended"
)

// Band thresholds in milliseconds.
const (
	gapBriefMs       = 6 * 60 * 60 * 1000
	gapNotableMs     = 24 * 60 * 60 * 1000
	gapSignificantMs = 3 * 24 * 60 * 60 * 1000
	gapMajorMs       = 7 * 24 * 60 * 60 * 1000
	gapExtendedMs    = 30 * 24 * 60 * 60 * 1000
)

// TemporalAwareness classifies the gap since last contact. The last-active
// timestamp itself is not decayed; only the gap is interpreted.
type TemporalAwareness struct {
	Clock Clock
}

func NewTemporalAwareness(clock Clock) *TemporalAwareness {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TemporalAwareness{Clock: clock}
}

// ClassifyGap maps elapsed milliseconds onto a named band.
func ClassifyGap(elapsedMs int64) string {
	switch {
	case elapsedMs < gapBriefMs:
		return GapNone
	case elapsedMs < gapNotableMs:
		return GapBrief
	case elapsedMs < gapSignificantMs:
		return GapNotable
	case elapsedMs < gapMajorMs:
		return GapSignificant
	case elapsedMs < gapExtendedMs:
		return GapMajor
	default:
		return GapExtended
	}
}

// GapSince classifies the gap between a last-active unix-millis timestamp and
// now. A nil timestamp (never met) classifies as none.
func (t *TemporalAwareness) GapSince(lastActive *int64) string {
	if lastActive == nil {
		return GapNone
	}
	elapsed := t.Clock.Now().UnixMilli() - *lastActive
	if elapsed < 0 {
		return GapNone
	}
	return ClassifyGap(elapsed)
}

var gapReflections = map[string]string{
	GapBrief:       "Hours have passed since the last exchange. Pick the thread back up as if stepping out of the next room.",
	GapNotable:     "A day or more has gone by. Acknowledge the interval obliquely, the way one notices a changed sky.",
	GapSignificant: "Several days of silence sit between now and then. Let a little distance show before warmth returns.",
	GapMajor:       "More than a week has elapsed. Old threads have cooled; some details may surface slowly or wrongly.",
	GapExtended:    "A long absence, a month or more. Treat the reunion as its own small event, with time's weight on it.",
}

// Reflection renders a persona-flavored note for the given band, or "" when
// the band is none.
func Reflection(band, personaName string) string {
	r, ok := gapReflections[band]
	if !ok {
		return ""
	}
	return fmt.Sprintf("[Time passed for %s: %s]", personaName, r)
}
