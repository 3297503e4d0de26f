package soul

import (
	"regexp"
	"strings"
)

// Markers are the reference-voice signals derived from a soul file.
// Vocabulary terms are expected to appear in the persona's speech; forbidden
// phrases must never appear; patterns are structural regexes the response
// must not violate.
type Markers struct {
	Vocabulary []string
	Forbidden  []string
	Patterns   []*regexp.Regexp
}

// ExtractMarkers parses the marker blocks out of soul content. A block opens
// with a line ending in "vocabulary:", "never:", or "patterns:" and collects
// the "- item" lines that follow it.
//
//	vocabulary:
//	- rocket
//	- parabola
//
//	never:
//	- as an AI language model
//
//	patterns:
//	- (?i)^\s*certainly[,!]
func ExtractMarkers(content string) Markers {
	var m Markers
	var current string

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasSuffix(lower, "vocabulary:"):
			current = "vocabulary"
			continue
		case strings.HasSuffix(lower, "never:"):
			current = "never"
			continue
		case strings.HasSuffix(lower, "patterns:"):
			current = "patterns"
			continue
		}

		if !strings.HasPrefix(trimmed, "- ") {
			// Prose ends the current block; blank lines do not.
			if trimmed != "" {
				current = ""
			}
			continue
		}

		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "- "))
		if item == "" {
			continue
		}

		switch current {
		case "vocabulary":
			m.Vocabulary = append(m.Vocabulary, strings.ToLower(item))
		case "never":
			m.Forbidden = append(m.Forbidden, strings.ToLower(item))
		case "patterns":
			re, err := regexp.Compile(item)
			if err != nil {
				continue // malformed pattern lines are skipped, not fatal
			}
			m.Patterns = append(m.Patterns, re)
		}
	}

	return m
}
