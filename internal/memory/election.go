package memory

import (
	"hash/fnv"
	"math"
	"strings"
	"time"
)

// Election score bands.
const (
	electThreshold      = 0.6
	borderlineThreshold = 0.3
)

// Preterite resurfacing: a small chance that decays with memory age.
const (
	baseResurfaceChance = 0.05
	resurfaceHalfLife   = 30 * 24 * time.Hour
)

var emotionalWords = []string{
	"love", "hate", "afraid", "fear", "joy", "grief", "miss", "hurt",
	"beautiful", "terrible", "wonderful", "lost", "alone", "happy", "sad",
	"angry", "ashamed", "proud", "longing", "regret",
}

// CalculateElectionScore blends emotional-language density, content length,
// recency, and importance into [0,1].
func CalculateElectionScore(content string, createdAt, now time.Time, importance float64) float64 {
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 {
		return 0
	}

	emotional := 0
	for _, w := range words {
		for _, e := range emotionalWords {
			if strings.Contains(w, e) {
				emotional++
				break
			}
		}
	}
	// Density saturates at 1 in 10 words.
	density := math.Min(float64(emotional)/float64(len(words))*10.0, 1.0)

	length := math.Min(float64(len(content))/400.0, 1.0)

	recency := 1.0
	if age := now.Sub(createdAt); age > 0 {
		// Linear falloff over 30 days.
		recency = math.Max(0, 1.0-age.Hours()/(30*24))
	}

	score := 0.3*density + 0.2*length + 0.2*recency + 0.3*importance
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ClassifyElection maps an election score onto its class.
func ClassifyElection(score float64) string {
	switch {
	case score >= electThreshold:
		return "elect"
	case score >= borderlineThreshold:
		return "borderline"
	default:
		return "preterite"
	}
}

// Redact degrades content for a preterite memory by eliding words. The elision
// stride derives from the memory id, so the degraded form is stable across
// reads, but the dropped words are gone: the original is not reconstructible.
func Redact(id, content string) string {
	words := strings.Fields(content)
	if len(words) <= 2 {
		return "— — —"
	}

	h := fnv.New32a()
	h.Write([]byte(id))
	stride := 2 + int(h.Sum32()%3) // 2..4

	out := make([]string, 0, len(words))
	for i, w := range words {
		if i%stride == stride-1 {
			out = append(out, "——")
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// ResurfaceChance returns the time-decayed probability that a preterite
// memory surfaces again.
func ResurfaceChance(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age <= 0 {
		return baseResurfaceChance
	}
	halfLives := float64(age) / float64(resurfaceHalfLife)
	return baseResurfaceChance * math.Pow(0.5, halfLives)
}
