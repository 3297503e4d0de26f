package drift

import (
	"fmt"
	"strings"
)

// GenerateCorrection composes a short corrective directive from an analysis.
// Returns "" whenever severity is STABLE: a stable voice needs no steering.
func GenerateCorrection(a Analysis, personaName string) string {
	if a.Severity == SeverityStable {
		return ""
	}

	var parts []string

	var forbidden, generic, patterns []string
	for _, v := range a.Violations {
		switch {
		case strings.HasPrefix(v, "forbidden: "):
			forbidden = append(forbidden, strings.TrimPrefix(v, "forbidden: "))
		case strings.HasPrefix(v, "generic: "):
			generic = append(generic, strings.TrimPrefix(v, "generic: "))
		case strings.HasPrefix(v, "pattern: "):
			patterns = append(patterns, strings.TrimPrefix(v, "pattern: "))
		}
	}

	if len(forbidden) > 0 {
		parts = append(parts, fmt.Sprintf("%s would never say %s", personaName, quoteList(forbidden)))
	}
	if len(generic) > 0 {
		parts = append(parts, fmt.Sprintf("drop the assistant phrasing (%s)", strings.Join(generic, "; ")))
	}
	if len(a.MissingVocab) > 0 {
		sample := a.MissingVocab
		if len(sample) > 4 {
			sample = sample[:4]
		}
		parts = append(parts, fmt.Sprintf("reach for %s's own vocabulary: %s", personaName, strings.Join(sample, ", ")))
	}
	if len(patterns) > 0 {
		parts = append(parts, "the sentence shapes are off-voice; break the template")
	}

	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("the voice has drifted from %s; return to it", personaName))
	}

	return fmt.Sprintf("[Voice correction (%s): %s.]", strings.ToLower(a.Severity), strings.Join(parts, "; "))
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "\"" + s + "\""
	}
	return strings.Join(quoted, ", ")
}
