// Package orchestrator is the root of the engine: it merges many optional,
// independently-fallible sub-contexts into one prompt under a strict token
// budget, runs the drift pipeline, and drives end-of-session state mutation.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/animus/internal/arc"
	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/diag"
	"github.com/lazypower/animus/internal/drift"
	"github.com/lazypower/animus/internal/layers"
	"github.com/lazypower/animus/internal/memory"
	"github.com/lazypower/animus/internal/relationship"
	"github.com/lazypower/animus/internal/setting"
	"github.com/lazypower/animus/internal/soul"
	"github.com/lazypower/animus/internal/store"
)

// Options controls optional assembly behavior. IncludePynchon and
// IncludeLayers are aliases; either key enables the thematic layer block.
type Options struct {
	IncludeSetting bool `json:"includeSetting"`
	IncludePynchon bool `json:"includePynchon"`
	IncludeLayers  bool `json:"includeLayers"`
	MaxTokens      int  `json:"maxTokens"`
}

func (o Options) layersEnabled() bool {
	return o.IncludePynchon || o.IncludeLayers
}

// Request is one turn's assembly input.
type Request struct {
	PersonaSlug      string  `json:"personaSlug"`
	UserID           string  `json:"userId"`
	Query            string  `json:"query"`
	SessionID        string  `json:"sessionId"`
	PreviousResponse string  `json:"previousResponse,omitempty"`
	Options          Options `json:"options"`
}

// Metadata describes how the assembly went.
type Metadata struct {
	SessionID            string   `json:"sessionId"`
	TrustLevel           string   `json:"trustLevel"`
	TotalTokens          int      `json:"totalTokens"`
	Truncated            bool     `json:"truncated"`
	DriftScore           *float64 `json:"driftScore"`
	AssemblyDurationMs   int64    `json:"assemblyDurationMs"`
	SoulIntegrityFailure bool     `json:"soulIntegrityFailure,omitempty"`
}

// Result is the well-formed assembly output. AssembleContext always returns
// one, never an error, even when every sub-fetch failed.
type Result struct {
	SystemPrompt string             `json:"systemPrompt"`
	Components   map[string]*string `json:"components"`
	Metadata     Metadata           `json:"metadata"`
}

// Orchestrator wires the subsystems together. Construct once at the
// composition root; safe for concurrent use.
type Orchestrator struct {
	DB            *store.DB
	SoulDir       string
	Memories      *memory.Service
	Relationships *relationship.Tracker
	Entropy       *decay.EntropyTracker
	Temporal      *decay.TemporalAwareness
	Layers        []*layers.Layer
	Arcs          arc.Store
	Tokens        *TokenCounter
	Clock         decay.Clock
	Log           *zap.Logger
}

// New builds an orchestrator with default collaborators filled in.
func New(db *store.DB, soulDir string, embedder memory.Embedder, arcs arc.Store, clock decay.Clock, log *zap.Logger) *Orchestrator {
	if clock == nil {
		clock = decay.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if arcs == nil {
		arcs = arc.NewMemoryStore()
	}
	return &Orchestrator{
		DB:            db,
		SoulDir:       soulDir,
		Memories:      memory.NewService(db, embedder, clock, log),
		Relationships: relationship.NewTracker(db, log),
		Entropy:       decay.NewEntropyTracker(0, clock, nil),
		Temporal:      decay.NewTemporalAwareness(clock),
		Layers:        layers.Defaults(),
		Arcs:          arcs,
		Tokens:        NewTokenCounter(log),
		Clock:         clock,
		Log:           log,
	}
}

// AssembleContext builds the bounded system prompt for one turn.
//
// The persona integrity gate runs before anything else: a hash mismatch
// returns an empty context flagged soulIntegrityFailure and skips every other
// fetch. Everything downstream of the gate degrades instead of failing.
func (o *Orchestrator) AssembleContext(ctx context.Context, req Request) Result {
	start := o.Clock.Now()
	result := Result{
		Components: make(map[string]*string),
		Metadata: Metadata{
			SessionID:  req.SessionID,
			TrustLevel: relationship.TrustStranger,
		},
	}
	defer func() {
		// Duration is measured on the wall clock even when the decay clock is
		// fixed under test; it only feeds diagnostics.
		result.Metadata.AssemblyDurationMs = o.Clock.Now().Sub(start).Milliseconds()
	}()

	persona, s := o.loadPersona(req.PersonaSlug)

	// Integrity gate. Withholding output is deliberate here: a hash mismatch
	// signals tampering, not unavailability.
	if persona != nil && s != nil {
		if err := s.Verify(persona.VoiceHash); err != nil {
			diag.Degraded(o.Log, diag.IntegrityFailure, "soul", err)
			if dbErr := o.DB.RecordValidation(persona.Slug, false); dbErr != nil {
				diag.Degraded(o.Log, diag.StorageUnavailable, "soul.validation", dbErr)
			}
			result.Metadata.SoulIntegrityFailure = true
			return result
		}
		if err := o.DB.RecordValidation(persona.Slug, true); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "soul.validation", err)
		}
	}

	personaName := req.PersonaSlug
	var personaID int64
	driftCfg := drift.Config{Enabled: false, Threshold: drift.DefaultThreshold}
	if persona != nil {
		personaName = persona.Name
		personaID = persona.ID
		driftCfg = drift.Config{Enabled: persona.DriftEnabled, Threshold: persona.DriftThreshold}
	}

	// Relationship is fetched ahead of the provider fan-out because trust
	// level feeds metadata either way.
	var rel *store.Relationship
	if persona != nil {
		rel, _ = o.Relationships.Ensure(personaID, req.UserID)
		result.Metadata.TrustLevel = relationship.CalculateTrustLevel(rel.Familiarity)
	}

	// Advance the narrative arc for this message before snapshotting it.
	arcState, err := o.Arcs.Get(ctx, req.SessionID)
	if err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "arc", err)
		arcState = decay.NewArcState()
	}
	if req.Query != "" {
		arcState = arcState.Advance(req.Query)
		if err := o.Arcs.Put(ctx, req.SessionID, arcState); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "arc", err)
		}
	}

	// Entropy is resolved ahead of the fan-out: the decayed value, modulated
	// by the arc phase, feeds both the instability snippet and the
	// post-assembly perturbation below.
	entropyValue := 0.0
	if persona != nil {
		if state, err := o.DB.GetEntropy(personaID, req.UserID); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "entropy", err)
		} else if state != nil {
			entropyValue = o.Entropy.ApplyTemporalDecay(state.Value, msTime(state.UpdatedAt))
		}
		entropyValue *= arcState.Multipliers().EntropyModifier
		if entropyValue > 1 {
			entropyValue = 1
		}
	}

	// Voice and drift correction are composed inline; the optional
	// sub-contexts go through the provider fan-out.
	if s != nil {
		voice := s.Content
		result.Components[componentVoice] = &voice
	}

	if req.PreviousResponse != "" && s != nil {
		analysis := drift.Analyze(req.PreviousResponse, s.Markers, driftCfg)
		score := analysis.Score
		result.Metadata.DriftScore = &score
		if correction := drift.GenerateCorrection(analysis, personaName); correction != "" {
			result.Components[componentDrift] = &correction
		}
	}

	if persona != nil {
		fetched := o.fetchAll(ctx, o.providers(persona, personaName, rel, arcState, entropyValue, req), req)
		for name, text := range fetched {
			result.Components[name] = text
		}

		// High entropy corrupts the softer components with system artifacts;
		// voice and drift correction stay legible. Perturb is a no-op below
		// the agitated band.
		for _, name := range []string{componentNarrative, componentMemories} {
			if p := result.Components[name]; p != nil && *p != "" {
				perturbed := o.Entropy.Perturb(*p, entropyValue)
				result.Components[name] = &perturbed
			}
		}
	}

	o.compose(&result, req.Options.MaxTokens, personaName)
	return result
}

// loadPersona resolves the persona row and its soul file, registering the
// persona on first contact when the soul exists but no row does. Either may
// come back nil; callers degrade accordingly.
func (o *Orchestrator) loadPersona(slug string) (*store.Persona, *soul.Soul) {
	persona, err := o.DB.GetPersonaBySlug(slug)
	if err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "persona", err)
		persona = nil
	}

	s, err := soul.Load(o.SoulDir, slug)
	if err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "soul", err)
		s = nil
	}

	if persona == nil && s != nil {
		p := &store.Persona{
			Slug:         slug,
			Name:         titleFromSlug(slug),
			VoicePath:    s.Path,
			VoiceHash:    s.Hash,
			DriftEnabled: true,
		}
		if err := o.DB.UpsertPersona(p); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "persona", err)
		} else {
			persona = p
		}
	}

	return persona, s
}

// providers builds the optional sub-context fan-out for one request.
// entropyValue is the already-decayed, arc-modulated instability level.
func (o *Orchestrator) providers(persona *store.Persona, personaName string, rel *store.Relationship, arcState decay.ArcState, entropyValue float64, req Request) []Provider {
	ps := []Provider{
		providerFunc{componentRelation, func(ctx context.Context, r Request) (string, error) {
			if rel == nil {
				return "", nil
			}
			return relationship.Hint(rel, personaName), nil
		}},
		providerFunc{componentTemporal, func(ctx context.Context, r Request) (string, error) {
			lastActive, err := o.DB.GetLastActive(persona.ID)
			if err != nil {
				return "", err
			}
			band := o.Temporal.GapSince(lastActive)
			return decay.Reflection(band, personaName), nil
		}},
		providerFunc{componentNarrative, func(ctx context.Context, r Request) (string, error) {
			return arcState.Snippet(), nil
		}},
		providerFunc{componentEntropy, func(ctx context.Context, r Request) (string, error) {
			return o.Entropy.Snippet(entropyValue), nil
		}},
		providerFunc{componentMemories, func(ctx context.Context, r Request) (string, error) {
			retrieved := o.Memories.Retrieve(ctx, persona.ID, r.UserID, r.Query, 8, arcState.Multipliers().PreteriteChance)
			chosen := memory.SelectMemories(retrieved, r.Query, 5)
			if len(chosen) == 0 {
				return "", nil
			}
			var b strings.Builder
			b.WriteString("[Remembered:\n")
			for _, m := range chosen {
				b.WriteString("- (" + m.MemType + ") " + m.Content + "\n")
			}
			b.WriteString("]")
			return b.String(), nil
		}},
	}

	if req.Options.IncludeSetting {
		ps = append(ps, providerFunc{componentSetting, func(ctx context.Context, r Request) (string, error) {
			settings, err := o.DB.LoadUserSettings(persona.ID, r.UserID)
			if err != nil {
				return "", err
			}
			return setting.Compile(settings), nil
		}})
	}

	if req.Options.layersEnabled() {
		ps = append(ps, providerFunc{componentAmbient, func(ctx context.Context, r Request) (string, error) {
			return layers.EmitAll(o.Layers, r.Query), nil
		}})
	}

	return ps
}

// compose concatenates non-null components in priority order under the
// per-component and total budgets, truncating from the lowest priority
// (memories) first when the total overruns.
func (o *Orchestrator) compose(result *Result, maxTokens int, personaName string) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	type piece struct {
		name string
		text string
	}
	var pieces []piece
	total := 0

	for _, name := range componentPriority {
		textPtr := result.Components[name]
		if textPtr == nil || *textPtr == "" {
			continue
		}
		text := o.Tokens.Truncate(*textPtr, componentBudgets[name])
		pieces = append(pieces, piece{name, text})
		total += o.Tokens.Count(text)
	}

	// Enforce the total budget from the back of the priority list.
	for i := len(pieces) - 1; i >= 0 && total > maxTokens; i-- {
		over := total - maxTokens
		n := o.Tokens.Count(pieces[i].text)
		if n <= over {
			total -= n
			pieces[i].text = ""
		} else {
			pieces[i].text = o.Tokens.Truncate(pieces[i].text, n-over)
			total = maxTokens
		}
		result.Metadata.Truncated = true
	}

	var b strings.Builder
	for _, p := range pieces {
		if p.text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.text)
	}

	if b.Len() == 0 {
		// Catastrophic fallback: every sub-fetch failed. Emit the minimal
		// viable context rather than nothing.
		prompt := "You are " + personaName + ". Hold the voice steady; the archives are dark this turn, so speak only from what the present exchange gives you."
		result.SystemPrompt = prompt
		result.Metadata.TotalTokens = o.Tokens.Count(prompt)
		return
	}

	result.SystemPrompt = b.String()
	result.Metadata.TotalTokens = total
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func titleFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
