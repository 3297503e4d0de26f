package relationship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/animus/internal/store"
)

func TestCalculateTrustLevel(t *testing.T) {
	tests := []struct {
		familiarity float64
		want        string
	}{
		{0, TrustStranger},
		{0.19, TrustStranger},
		{0.2, TrustAcquaintance},
		{0.49, TrustAcquaintance},
		{0.5, TrustFamiliar},
		{0.79, TrustFamiliar},
		{0.8, TrustConfidant},
		{1.0, TrustConfidant},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateTrustLevel(tt.familiarity), "familiarity %v", tt.familiarity)
	}
}

func TestCalculateEngagementScore(t *testing.T) {
	empty := CalculateEngagementScore(SessionQuality{})
	assert.InDelta(t, engagementFloor, empty, 1e-9, "empty session bottoms out at the floor")

	rich := CalculateEngagementScore(SessionQuality{
		MessageCount: 40,
		Duration:     time.Hour,
		HadFollowUp:  true,
		TopicDepth:   1.0,
	})
	assert.InDelta(t, engagementCeiling, rich, 1e-9, "saturated session hits the ceiling")

	mid := CalculateEngagementScore(SessionQuality{MessageCount: 10, Duration: 15 * time.Minute})
	assert.Greater(t, mid, empty)
	assert.Less(t, mid, rich)
}

func TestCalculateEffectiveDeltaCapped(t *testing.T) {
	// Sweep the whole engagement range; no engagement value may push a
	// single session past the per-session cap.
	for e := engagementFloor; e <= engagementCeiling; e += 0.01 {
		delta := CalculateEffectiveDelta(e)
		assert.LessOrEqual(t, delta, maxDelta)
		assert.Greater(t, delta, 0.0)
	}
	assert.InDelta(t, baseDelta, CalculateEffectiveDelta(1.0), 1e-9)
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPersona(t *testing.T, db *store.DB) *store.Persona {
	t.Helper()
	p := &store.Persona{Slug: "slothrop", Name: "Tyrone Slothrop", VoiceHash: "h"}
	require.NoError(t, db.UpsertPersona(p))
	return p
}

func TestEnsureCreatesStranger(t *testing.T) {
	db := openTestDB(t)
	p := seedPersona(t, db)
	tracker := NewTracker(db, nil)

	rel, fallback := tracker.Ensure(p.ID, "katje")
	require.NotNil(t, rel)
	assert.False(t, fallback)
	assert.Equal(t, 0.0, rel.Familiarity)
	assert.Equal(t, TrustStranger, CalculateTrustLevel(rel.Familiarity))

	// Second call returns the same row, not a new one.
	again, fallback := tracker.Ensure(p.ID, "katje")
	assert.False(t, fallback)
	assert.Equal(t, rel.ID, again.ID)
}

func TestEnsureFallbackOnClosedStore(t *testing.T) {
	db := openTestDB(t)
	p := seedPersona(t, db)
	tracker := NewTracker(db, nil)
	db.Close()

	rel, fallback := tracker.Ensure(p.ID, "katje")
	require.NotNil(t, rel, "conversation must never be blocked by storage")
	assert.True(t, fallback)
	assert.Equal(t, 0.0, rel.Familiarity)
}

func TestApplySessionDelta(t *testing.T) {
	db := openTestDB(t)
	p := seedPersona(t, db)
	tracker := NewTracker(db, nil)

	rel, _ := tracker.Ensure(p.ID, "katje")
	quality := SessionQuality{MessageCount: 12, Duration: 20 * time.Minute, HadFollowUp: true, TopicDepth: 0.5}

	require.NoError(t, tracker.ApplySessionDelta(rel, quality))
	assert.Greater(t, rel.Familiarity, 0.0)
	assert.LessOrEqual(t, rel.Familiarity, maxDelta)
	assert.Equal(t, 1, rel.InteractionCount)

	// Persisted, not just in-memory.
	stored, err := db.GetRelationship(p.ID, "katje")
	require.NoError(t, err)
	assert.Equal(t, rel.Familiarity, stored.Familiarity)
}

func TestApplySessionDeltaClampsAtOne(t *testing.T) {
	db := openTestDB(t)
	p := seedPersona(t, db)
	tracker := NewTracker(db, nil)

	rel, _ := tracker.Ensure(p.ID, "katje")
	rel.Familiarity = 0.99
	require.NoError(t, db.UpdateRelationship(rel))

	quality := SessionQuality{MessageCount: 40, Duration: time.Hour, HadFollowUp: true, TopicDepth: 1}
	require.NoError(t, tracker.ApplySessionDelta(rel, quality))
	assert.Equal(t, 1.0, rel.Familiarity)

	// Monotonic: a further session cannot decrease it.
	require.NoError(t, tracker.ApplySessionDelta(rel, SessionQuality{}))
	assert.Equal(t, 1.0, rel.Familiarity)
}

func TestHint(t *testing.T) {
	rel := &store.Relationship{Familiarity: 0.05}
	hint := Hint(rel, "Slothrop")
	assert.Contains(t, hint, TrustStranger)

	rel.Familiarity = 0.9
	rel.Summary = "shares rocket dreams"
	hint = Hint(rel, "Slothrop")
	assert.Contains(t, hint, TrustConfidant)
	assert.Contains(t, hint, "shares rocket dreams")
	assert.Contains(t, hint, "Slothrop")
}
