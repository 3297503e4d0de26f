package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/memory"
	"github.com/lazypower/animus/internal/store"
)

var testNow = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

const testSoul = `# Tyrone Slothrop

A voice out of the Zone. Paranoid, tender, always half a step behind
his own conditioning, convinced the rocket has his name on it.

vocabulary:
- rocket
- parabola
- zone

never:
- happy to assist
`

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	soulDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(soulDir, "slothrop.soul.md"), []byte(testSoul), 0644))

	o := New(db, soulDir, nil, nil, decay.FixedClock{T: testNow}, nil)
	return o, db
}

func TestAssembleContextRegistersPersona(t *testing.T) {
	o, db := newTestOrchestrator(t)

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug: "slothrop",
		UserID:      "katje",
		Query:       "tell me about the rocket",
		SessionID:   "sess-1",
	})

	assert.False(t, result.Metadata.SoulIntegrityFailure)
	assert.Contains(t, result.SystemPrompt, "A voice out of the Zone")
	assert.Equal(t, "stranger", result.Metadata.TrustLevel)
	assert.Greater(t, result.Metadata.TotalTokens, 0)

	// First contact registers the persona row with the computed hash.
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Slothrop", p.Name)
	assert.True(t, p.Valid, "a passing integrity check is recorded")
}

func TestAssembleContextIntegrityFailure(t *testing.T) {
	o, db := newTestOrchestrator(t)

	// Seed the persona with a hash that does not match the file on disk.
	p := &store.Persona{Slug: "slothrop", Name: "Tyrone Slothrop", VoiceHash: "deadbeef", DriftEnabled: true}
	require.NoError(t, db.UpsertPersona(p))

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug: "slothrop",
		UserID:      "katje",
		Query:       "anything",
		SessionID:   "sess-1",
	})

	assert.True(t, result.Metadata.SoulIntegrityFailure)
	assert.Equal(t, "", result.SystemPrompt, "a tampered soul yields no context at all")
	assert.Empty(t, result.Components)

	got, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)
	assert.False(t, got.Valid)
	assert.NotNil(t, got.ValidatedAt)
}

func TestAssembleContextUnknownPersona(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug: "roger-mexico",
		UserID:      "jessica",
		Query:       "hello",
		SessionID:   "sess-1",
	})

	// No soul, no row: assembly still produces the minimal fallback prompt.
	assert.False(t, result.Metadata.SoulIntegrityFailure)
	assert.Contains(t, result.SystemPrompt, "roger-mexico")
	assert.Equal(t, "stranger", result.Metadata.TrustLevel)
}

func TestAssembleContextDriftCorrection(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug:      "slothrop",
		UserID:           "katje",
		Query:            "go on",
		SessionID:        "sess-1",
		PreviousResponse: "As an AI, I'm here to help and always happy to assist you.",
	})

	// One forbidden phrase, two generic-assistant tells, and a complete
	// vocabulary shortfall: 0.25 + 0.30 + 0.30.
	require.NotNil(t, result.Metadata.DriftScore)
	assert.InDelta(t, 0.85, *result.Metadata.DriftScore, 1e-9)

	correction := result.Components[componentDrift]
	require.NotNil(t, correction)
	assert.Contains(t, *correction, "happy to assist")
	assert.Contains(t, result.SystemPrompt, *correction)
}

func TestAssembleContextStableResponseNoCorrection(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug:      "slothrop",
		UserID:           "katje",
		Query:            "go on",
		SessionID:        "sess-1",
		PreviousResponse: "The rocket traces its parabola over the zone, and I watch it go.",
	})

	require.NotNil(t, result.Metadata.DriftScore)
	assert.Equal(t, 0.0, *result.Metadata.DriftScore)
	assert.Nil(t, result.Components[componentDrift])
}

func TestAssembleContextEntropyScaledByArc(t *testing.T) {
	o, db := newTestOrchestrator(t)

	o.AssembleContext(context.Background(), Request{PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0"})
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)
	require.NoError(t, db.SaveEntropy(p.ID, "katje", 0.5, testNow.UnixMilli()))

	// A trigger-free query drifts the fresh arc to momentum 0.25 in the
	// rising phase, so the stored 0.5 reads as 0.5 * 0.8 * 0.625 = 0.25.
	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug: "slothrop",
		UserID:      "katje",
		Query:       "hello there",
		SessionID:   "sess-1",
	})

	entropy := result.Components[componentEntropy]
	require.NotNil(t, entropy)
	assert.Contains(t, *entropy, "restless (0.25)")
}

func TestAssembleContextPerturbsMemoriesAtHighEntropy(t *testing.T) {
	o, db := newTestOrchestrator(t)

	o.AssembleContext(context.Background(), Request{PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0"})
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)
	require.NoError(t, db.SaveEntropy(p.ID, "katje", 1.0, testNow.UnixMilli()))

	m := &store.Memory{
		PersonaID: p.ID,
		UserID:    "katje",
		Content:   "the rocket climbs",
		Election:  store.ElectionElect,
		CreatedAt: testNow.Add(-time.Hour).UnixMilli(),
	}
	require.NoError(t, db.InsertMemory(m))

	// Hold the arc at apex with full momentum so the modulated entropy sits
	// at the ceiling and corruption probability at its cap.
	require.NoError(t, o.Arcs.Put(context.Background(), "sess-1",
		decay.ArcState{Phase: decay.PhaseApex, Momentum: 1, Messages: 4}))

	clean := "[Remembered:\n- (interaction) the rocket climbs\n]"
	perturbed := false
	for i := 0; i < 40 && !perturbed; i++ {
		result := o.AssembleContext(context.Background(), Request{
			PersonaSlug: "slothrop",
			UserID:      "katje",
			Query:       "why does the rocket climb",
			SessionID:   "sess-1",
		})
		mem := result.Components[componentMemories]
		require.NotNil(t, mem)
		perturbed = *mem != clean
	}
	assert.True(t, perturbed, "high entropy must eventually corrupt the remembered fragment")
}

func TestOptionsPynchonAlias(t *testing.T) {
	var pynchon Request
	require.NoError(t, json.Unmarshal([]byte(`{"options":{"includePynchon":true}}`), &pynchon))
	assert.True(t, pynchon.Options.layersEnabled())

	var legacy Request
	require.NoError(t, json.Unmarshal([]byte(`{"options":{"includeLayers":true}}`), &legacy))
	assert.True(t, legacy.Options.layersEnabled())

	var neither Request
	require.NoError(t, json.Unmarshal([]byte(`{"options":{}}`), &neither))
	assert.False(t, neither.Options.layersEnabled())
}

func TestAssembleContextPynchonLayers(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.AssembleContext(context.Background(), Request{
		PersonaSlug: "slothrop",
		UserID:      "katje",
		Query:       "they know everything, the cameras watch and record it all",
		SessionID:   "sess-1",
		Options:     Options{IncludePynchon: true},
	})

	ambient := result.Components[componentAmbient]
	require.NotNil(t, ambient)
	assert.Contains(t, *ambient, "surveillance")
	assert.Contains(t, result.SystemPrompt, *ambient)
}

func TestComposeTruncatesMemoriesFirst(t *testing.T) {
	o := &Orchestrator{Tokens: NewTokenCounter(nil)}

	voice := strings.Repeat("the rocket climbs its steady parabola tonight ", 3)
	memories := strings.Repeat("remembered fragment of an earlier conversation in the zone ", 40)

	result := &Result{Components: map[string]*string{
		componentVoice:    &voice,
		componentMemories: &memories,
	}}
	o.compose(result, 60, "Slothrop")

	assert.True(t, result.Metadata.Truncated)
	assert.LessOrEqual(t, result.Metadata.TotalTokens, 60)
	assert.True(t, strings.HasPrefix(result.SystemPrompt, strings.TrimSpace(voice)[:20]),
		"the voice survives intact; memories absorb the cut")
}

func TestComposeFallbackPrompt(t *testing.T) {
	o := &Orchestrator{Tokens: NewTokenCounter(nil)}

	result := &Result{Components: map[string]*string{}}
	o.compose(result, 0, "Slothrop")

	assert.Contains(t, result.SystemPrompt, "You are Slothrop")
	assert.False(t, result.Metadata.Truncated)
	assert.Greater(t, result.Metadata.TotalTokens, 0)
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	o := &Orchestrator{}

	providers := []Provider{
		providerFunc{"boom", func(ctx context.Context, r Request) (string, error) {
			panic("provider exploded")
		}},
		providerFunc{"broken", func(ctx context.Context, r Request) (string, error) {
			return "", errors.New("backend offline")
		}},
		providerFunc{"silent", func(ctx context.Context, r Request) (string, error) {
			return "", nil
		}},
		providerFunc{"fine", func(ctx context.Context, r Request) (string, error) {
			return "usable text", nil
		}},
	}

	got := o.fetchAll(context.Background(), providers, Request{})
	require.Len(t, got, 4)
	assert.Nil(t, got["boom"])
	assert.Nil(t, got["broken"])
	assert.Nil(t, got["silent"])
	require.NotNil(t, got["fine"])
	assert.Equal(t, "usable text", *got["fine"])
}

func TestCompleteSessionIdempotent(t *testing.T) {
	o, db := newTestOrchestrator(t)

	// Register the persona through a first assembly.
	o.AssembleContext(context.Background(), Request{PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0"})
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)

	data := SessionData{
		SessionID:   "sess-1",
		UserID:      "katje",
		PersonaSlug: "slothrop",
		Messages: []memory.Message{
			{Role: "user", Content: "I feel afraid of death sometimes"},
			{Role: "assistant", Content: "The rocket hears every word."},
			{Role: "user", Content: "see you at the observatory"},
			{Role: "user", Content: "feeling kind of paranoid today"},
		},
		StartedAt: testNow.Add(-5 * time.Minute),
		EndedAt:   testNow,
	}

	first := o.CompleteSession(context.Background(), data)
	assert.False(t, first.Skipped)
	assert.Empty(t, first.Error)
	assert.Equal(t, 1, first.MemoriesStored)
	assert.Equal(t, 2, first.SettingsExtracted)
	require.NotNil(t, first.Relationship)
	assert.Greater(t, first.Relationship.Familiarity, 0.0)

	memories, err := db.ListMemories(p.ID, "katje", "")
	require.NoError(t, err)
	require.Len(t, memories, 1)

	settings, err := db.LoadUserSettings(p.ID, "katje")
	require.NoError(t, err)
	assert.Equal(t, "observatory", settings.Venue)
	assert.Equal(t, "paranoid", settings.Mood)

	entropy, err := db.GetEntropy(p.ID, "katje")
	require.NoError(t, err)
	require.NotNil(t, entropy)
	assert.Greater(t, entropy.Value, 0.0)

	lastActive, err := db.GetLastActive(p.ID)
	require.NoError(t, err)
	require.NotNil(t, lastActive)
	assert.Equal(t, testNow.UnixMilli(), *lastActive)

	// Second completion of the same session mutates nothing.
	second := o.CompleteSession(context.Background(), data)
	assert.True(t, second.Skipped)
	assert.Equal(t, 0, second.MemoriesStored)

	memories, err = db.ListMemories(p.ID, "katje", "")
	require.NoError(t, err)
	assert.Len(t, memories, 1, "retried completion must not duplicate memories")

	rel, err := db.GetRelationship(p.ID, "katje")
	require.NoError(t, err)
	assert.Equal(t, first.Relationship.Familiarity, rel.Familiarity,
		"retried completion must not bump familiarity twice")
	assert.Equal(t, 1, rel.InteractionCount)
}

func TestCompleteSessionConsignsPreterite(t *testing.T) {
	o, db := newTestOrchestrator(t)

	o.AssembleContext(context.Background(), Request{PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0"})
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)

	original := "I like it, I'm 30"
	result := o.CompleteSession(context.Background(), SessionData{
		SessionID:   "sess-2",
		UserID:      "katje",
		PersonaSlug: "slothrop",
		Messages:    []memory.Message{{Role: "user", Content: original}},
		StartedAt:   testNow.Add(-time.Minute),
		EndedAt:     testNow,
	})

	assert.Equal(t, 0, result.MemoriesStored)
	assert.Equal(t, 1, result.MemoriesConsignedToPreterite)

	memories, err := db.ListMemories(p.ID, "katje", store.ElectionPreterite)
	require.NoError(t, err)
	require.Len(t, memories, 1)

	// The original content never lands in storage; only the degraded form.
	assert.NotEqual(t, original, memories[0].Content)
	assert.Contains(t, memories[0].Content, "——")
	assert.Equal(t, 0.05, memories[0].ResurfaceChance)
}

func TestCompleteSessionArcInsightBonus(t *testing.T) {
	o, db := newTestOrchestrator(t)

	o.AssembleContext(context.Background(), Request{PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0"})
	p, err := db.GetPersonaBySlug("slothrop")
	require.NoError(t, err)

	messages := []memory.Message{{Role: "user", Content: "I feel afraid of death sometimes"}}

	base := o.CompleteSession(context.Background(), SessionData{
		SessionID:   "sess-a",
		UserID:      "katje",
		PersonaSlug: "slothrop",
		Messages:    messages,
		StartedAt:   testNow.Add(-time.Minute),
		EndedAt:     testNow,
	})
	require.Equal(t, 1, base.MemoriesStored)

	// The same transcript completed at apex with full momentum earns the
	// larger insight bonus.
	require.NoError(t, o.Arcs.Put(context.Background(), "sess-b",
		decay.ArcState{Phase: decay.PhaseApex, Momentum: 1, Messages: 6}))
	boosted := o.CompleteSession(context.Background(), SessionData{
		SessionID:   "sess-b",
		UserID:      "gretel",
		PersonaSlug: "slothrop",
		Messages:    messages,
		StartedAt:   testNow.Add(-time.Minute),
		EndedAt:     testNow,
	})
	require.Equal(t, 1, boosted.MemoriesStored)

	baseMems, err := db.ListMemories(p.ID, "katje", "")
	require.NoError(t, err)
	require.Len(t, baseMems, 1)
	boostMems, err := db.ListMemories(p.ID, "gretel", "")
	require.NoError(t, err)
	require.Len(t, boostMems, 1)

	assert.Equal(t, store.TypeInsight, boostMems[0].MemType)
	// Apex at full momentum grants 0.20 against the fresh arc's 0.05 * 0.65.
	assert.InDelta(t, 0.2-0.05*0.65, boostMems[0].Importance-baseMems[0].Importance, 1e-9)
}

func TestCompleteSessionUnknownPersona(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result := o.CompleteSession(context.Background(), SessionData{
		SessionID:   "sess-3",
		UserID:      "katje",
		PersonaSlug: "nobody",
	})
	assert.Contains(t, result.Error, "nobody")
	assert.False(t, result.Skipped)
}

func TestTokenCounter(t *testing.T) {
	c := NewTokenCounter(nil)

	assert.Equal(t, 0, c.Count(""))
	assert.Greater(t, c.Count("the rocket climbs its parabola"), 0)

	long := strings.Repeat("word after word after word ", 50)
	short := c.Truncate(long, 10)
	assert.LessOrEqual(t, c.Count(short), 10)
	assert.Less(t, len(short), len(long))

	// Under the budget nothing changes.
	assert.Equal(t, "short text", c.Truncate("short text", 100))
}

func TestTitleFromSlug(t *testing.T) {
	assert.Equal(t, "Roger Mexico", titleFromSlug("roger-mexico"))
	assert.Equal(t, "Slothrop", titleFromSlug("slothrop"))
}
