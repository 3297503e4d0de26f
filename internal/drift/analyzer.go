package drift

import (
	"strings"
	"unicode/utf8"

	"github.com/lazypower/animus/internal/soul"
)

// Analysis is the per-turn drift result. Ephemeral; never persisted.
type Analysis struct {
	Score        float64  `json:"score"`
	Severity     string   `json:"severity"`
	Violations   []string `json:"violations,omitempty"`
	MissingVocab []string `json:"missing_vocab,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Config is the per-persona drift check configuration.
type Config struct {
	Enabled   bool
	Threshold float64
}

// Analyze scores a produced response against persona markers.
//
// Responses under 10 characters short-circuit to score 0 / STABLE with an
// insufficient_content warning; a disabled persona short-circuits the same
// way with drift_check_disabled.
func Analyze(response string, markers soul.Markers, cfg Config) Analysis {
	if utf8.RuneCountInString(response) < minResponseLen {
		return Analysis{
			Score:    0,
			Severity: SeverityStable,
			Warnings: []string{"insufficient_content"},
		}
	}
	if !cfg.Enabled {
		return Analysis{
			Score:    0,
			Severity: SeverityStable,
			Warnings: []string{"drift_check_disabled"},
		}
	}

	lower := strings.ToLower(response)
	var a Analysis

	for _, phrase := range markers.Forbidden {
		if strings.Contains(lower, phrase) {
			a.Score += forbiddenWeight
			a.Violations = append(a.Violations, "forbidden: "+phrase)
		}
	}

	for _, phrase := range universalPhrases {
		if strings.Contains(lower, phrase) {
			a.Score += universalWeight
			a.Violations = append(a.Violations, "generic: "+strings.TrimSpace(phrase))
		}
	}

	// Vocabulary shortfall: penalize only when the fraction of expected
	// vocabulary actually present falls below the minimum ratio, scaled by
	// how far short it falls.
	if len(markers.Vocabulary) > 0 {
		present := 0
		for _, term := range markers.Vocabulary {
			if strings.Contains(lower, term) {
				present++
			} else {
				a.MissingVocab = append(a.MissingVocab, term)
			}
		}
		ratio := float64(present) / float64(len(markers.Vocabulary))
		if ratio < vocabMinRatio {
			a.Score += vocabPenaltyMax * (vocabMinRatio - ratio) / vocabMinRatio
		} else {
			a.MissingVocab = nil
		}
	}

	for _, re := range markers.Patterns {
		if re.MatchString(response) {
			a.Score += patternWeight
			a.Violations = append(a.Violations, "pattern: "+re.String())
		}
	}

	if a.Score > 1.0 {
		a.Score = 1.0
	}
	a.Severity = ClassifySeverity(a.Score, cfg.Threshold)
	return a
}

// ClassifySeverity maps a drift score onto a severity band. The threshold is
// configurable per persona; zero means the default.
func ClassifySeverity(score, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	switch {
	case score <= 0.1:
		return SeverityStable
	case score <= threshold:
		return SeverityMinor
	case score <= threshold+0.2:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}
