// Package relationship owns the per (persona,user) trust state machine.
// Familiarity is a continuous score in [0,1] that only session completion can
// raise; the categorical trust level is always derived from it, never stored.
package relationship

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/animus/internal/diag"
	"github.com/lazypower/animus/internal/store"
)

// Trust levels, ascending.
const (
	TrustStranger     = "stranger"
	TrustAcquaintance = "acquaintance"
	TrustFamiliar     = "familiar"
	TrustConfidant    = "confidant"
)

// Familiarity delta tuning.
const (
	baseDelta         = 0.05
	maxDelta          = 0.08
	engagementFloor   = 0.3
	engagementCeiling = 1.5
)

// SessionQuality summarizes one completed session for engagement scoring.
type SessionQuality struct {
	MessageCount int
	Duration     time.Duration
	HadFollowUp  bool
	TopicDepth   float64 // [0,1], from extraction's depth-category density
}

// CalculateTrustLevel maps familiarity onto the four fixed trust bands.
func CalculateTrustLevel(familiarity float64) string {
	switch {
	case familiarity < 0.2:
		return TrustStranger
	case familiarity < 0.5:
		return TrustAcquaintance
	case familiarity < 0.8:
		return TrustFamiliar
	default:
		return TrustConfidant
	}
}

// CalculateEngagementScore clamps a weighted function of message count,
// duration, follow-up presence, and topic depth into
// [engagementFloor, engagementCeiling].
func CalculateEngagementScore(q SessionQuality) float64 {
	messages := math.Min(float64(q.MessageCount)/20.0, 1.0)
	duration := math.Min(q.Duration.Minutes()/30.0, 1.0)

	score := 0.4*messages + 0.3*duration + 0.15*q.TopicDepth
	if q.HadFollowUp {
		score += 0.15
	}

	// Scale the [0,1] blend onto the engagement range.
	engagement := engagementFloor + score*(engagementCeiling-engagementFloor)
	if engagement < engagementFloor {
		return engagementFloor
	}
	if engagement > engagementCeiling {
		return engagementCeiling
	}
	return engagement
}

// CalculateEffectiveDelta caps the familiarity increment so no single session
// can exceed maxDelta regardless of engagement magnitude.
func CalculateEffectiveDelta(engagement float64) float64 {
	return math.Min(baseDelta*engagement, maxDelta)
}

// Tracker wraps the store with fallback behavior.
type Tracker struct {
	DB  *store.DB
	Log *zap.Logger
}

func NewTracker(db *store.DB, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{DB: db, Log: log}
}

// Ensure returns the relationship for (persona,user), creating it on first
// contact. On storage failure it returns an in-memory stranger default with
// fallback=true so the conversation is never blocked.
func (t *Tracker) Ensure(personaID int64, userID string) (*store.Relationship, bool) {
	rel, err := t.DB.GetRelationship(personaID, userID)
	if err != nil {
		diag.Degraded(t.Log, diag.StorageUnavailable, "relationship", err)
		return strangerFallback(personaID, userID), true
	}
	if rel != nil {
		return rel, false
	}

	rel, err = t.DB.CreateRelationship(personaID, userID)
	if err != nil {
		diag.Degraded(t.Log, diag.StorageUnavailable, "relationship", err)
		return strangerFallback(personaID, userID), true
	}
	return rel, false
}

// ApplySessionDelta raises familiarity by the engagement-derived delta and
// bumps the interaction count. Familiarity is monotonic non-decreasing and
// clamped to 1.0.
func (t *Tracker) ApplySessionDelta(rel *store.Relationship, quality SessionQuality) error {
	engagement := CalculateEngagementScore(quality)
	delta := CalculateEffectiveDelta(engagement)

	next := rel.Familiarity + delta
	if next > 1.0 {
		next = 1.0
	}
	if next < rel.Familiarity {
		next = rel.Familiarity
	}
	rel.Familiarity = next
	rel.InteractionCount++

	return t.DB.UpdateRelationship(rel)
}

func strangerFallback(personaID int64, userID string) *store.Relationship {
	now := time.Now().UnixMilli()
	return &store.Relationship{
		PersonaID: personaID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Hint renders the relationship component for context assembly.
func Hint(rel *store.Relationship, personaName string) string {
	level := CalculateTrustLevel(rel.Familiarity)

	var tone string
	switch level {
	case TrustStranger:
		tone = "This person is new. Keep the guard up; reveal little."
	case TrustAcquaintance:
		tone = "A returning face. Some warmth is earned, not all of it."
	case TrustFamiliar:
		tone = "A familiar presence across many sessions. Speak with shared history."
	case TrustConfidant:
		tone = "A confidant. Few walls remain; allude freely to what has passed between you."
	}

	hint := "[Relationship: " + level + ". " + tone + "]"
	if rel.Summary != "" {
		hint += "\n[What " + personaName + " knows of them: " + rel.Summary + "]"
	}
	return hint
}
