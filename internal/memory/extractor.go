package memory

import (
	"regexp"
	"sort"
	"time"

	"github.com/lazypower/animus/internal/store"
)

// Extraction limits.
const (
	maxCandidatesPerSession = 5
	importanceThreshold     = 0.3
	sessionLengthBonus      = 0.1
	longSessionDuration     = 10 * time.Minute
)

// Message is one conversational turn. Only user-authored turns are scanned.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// categoryRule is one declarative extraction rule: a pattern and the category
// weight it contributes. Weights across categories sum to 1.0.
type categoryRule struct {
	category string
	weight   float64
	patterns []*regexp.Regexp
}

// Category check order is intentional: preference and fact run first so they
// win type classification over the generic categories when several match.
var extractionRules = []categoryRule{
	{
		category: "preference",
		weight:   0.15,
		patterns: compileAll(
			`(?i)\bi (?:prefer|like|love|enjoy|hate|can't stand|always|never)\b`,
			`(?i)\bmy favou?rite\b`,
			`(?i)\bplease (?:don't|do not|always)\b`,
		),
	},
	{
		category: "fact",
		weight:   0.15,
		patterns: compileAll(
			`(?i)\bi (?:work|live|grew up|studied|was born)\b`,
			`(?i)\bmy (?:name|job|wife|husband|partner|daughter|son|dog|cat) is\b`,
			`(?i)\bi'?m (?:a|an|from|\d+)\b`,
		),
	},
	{
		category: "personal",
		weight:   0.25,
		patterns: compileAll(
			`(?i)\bi (?:feel|felt|think|thought|believe|remember|wish|fear)\b`,
			`(?i)\b(?:honestly|to be honest|between us)\b`,
			`(?i)\bnever told anyone\b`,
		),
	},
	{
		category: "depth",
		weight:   0.25,
		patterns: compileAll(
			`(?i)\b(?:meaning|purpose|mortality|death|time|memory|consciousness|dream)\b`,
			`(?i)\bwhat (?:does it mean|is the point)\b`,
			`(?i)\bwhy (?:do we|are we|does anything)\b`,
		),
	},
	{
		category: "significance",
		weight:   0.2,
		patterns: compileAll(
			`(?i)\b(?:important|significant|changed my life|turning point|milestone)\b`,
			`(?i)\bfirst time\b`,
			`(?i)\bnever forget\b`,
		),
	},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

// Candidate is one extracted memory candidate before election.
type Candidate struct {
	Content    string
	MemType    string
	Importance float64
	Categories []string
}

// ExtractCandidates scans user turns, regex-categorizes each, and scores
// importance as the weighted sum of matched categories plus a session-length
// bonus, capped at 1.0. Candidates below the importance threshold are
// dropped; at most maxCandidatesPerSession survive, highest importance first.
func ExtractCandidates(messages []Message, sessionDuration time.Duration) []Candidate {
	var candidates []Candidate

	for _, msg := range messages {
		if msg.Role != "user" || msg.Content == "" {
			continue
		}

		var matched []string
		importance := 0.0
		for _, rule := range extractionRules {
			for _, re := range rule.patterns {
				if re.MatchString(msg.Content) {
					matched = append(matched, rule.category)
					importance += rule.weight
					break
				}
			}
		}
		if len(matched) == 0 {
			continue
		}

		if sessionDuration > longSessionDuration {
			importance += sessionLengthBonus
		}
		if importance > 1.0 {
			importance = 1.0
		}
		if importance < importanceThreshold {
			continue
		}

		candidates = append(candidates, Candidate{
			Content:    msg.Content,
			MemType:    classifyType(matched),
			Importance: importance,
			Categories: matched,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Importance > candidates[j].Importance
	})
	if len(candidates) > maxCandidatesPerSession {
		candidates = candidates[:maxCandidatesPerSession]
	}
	return candidates
}

// classifyType maps matched categories onto a memory type. preference/fact
// outrank the generic default; depth/significance read as insight.
func classifyType(categories []string) string {
	for _, c := range categories {
		if c == "preference" || c == "fact" {
			return store.TypeLearning
		}
	}
	for _, c := range categories {
		if c == "depth" || c == "significance" {
			return store.TypeInsight
		}
	}
	return store.TypeInteraction
}

// TopicDepth returns the fraction of user messages that hit the depth
// category, used by relationship engagement scoring.
func TopicDepth(messages []Message) float64 {
	var userMsgs, deep int
	var depthRule categoryRule
	for _, r := range extractionRules {
		if r.category == "depth" {
			depthRule = r
		}
	}

	for _, msg := range messages {
		if msg.Role != "user" || msg.Content == "" {
			continue
		}
		userMsgs++
		for _, re := range depthRule.patterns {
			if re.MatchString(msg.Content) {
				deep++
				break
			}
		}
	}
	if userMsgs == 0 {
		return 0
	}
	return float64(deep) / float64(userMsgs)
}
