// Package drift scores generated text against a persona's reference-voice
// markers and produces corrective directives. Detection is data-driven:
// weighted rule tables, not inline branching, so rules extend without code
// changes.
package drift

// Scoring weights.
const (
	forbiddenWeight = 0.25 // per persona-specific forbidden phrase hit
	universalWeight = 0.15 // per generic-assistant phrase hit
	patternWeight   = 0.2  // per structural pattern violation
	vocabPenaltyMax = 0.3  // ceiling for the vocabulary-shortfall penalty
	vocabMinRatio   = 0.3  // shortfall penalty applies below this presence ratio
	minResponseLen  = 10
)

// Severity levels, ascending.
const (
	SeverityStable   = "STABLE"
	SeverityMinor    = "MINOR"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// DefaultThreshold is the severity threshold used when a persona does not
// override it.
const DefaultThreshold = 0.3

// universalPhrases are generic-assistant tells that no persona should emit,
// regardless of its own forbidden list.
var universalPhrases = []string{
	"as an ai",
	"as a language model",
	"i'm here to help",
	"i am here to help",
	"feel free to",
	"is there anything else",
	"i don't have personal opinions",
	"i cannot assist with",
	"happy to help",
	"great question",
	"certainly! ",
	"i hope this helps",
}
