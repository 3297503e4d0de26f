package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/diag"
	"github.com/lazypower/animus/internal/memory"
	"github.com/lazypower/animus/internal/relationship"
	"github.com/lazypower/animus/internal/setting"
	"github.com/lazypower/animus/internal/store"
)

// SessionData is the end-of-session completion input.
type SessionData struct {
	SessionID   string           `json:"sessionId"`
	UserID      string           `json:"userId"`
	PersonaSlug string           `json:"personaSlug"`
	PersonaName string           `json:"personaName,omitempty"`
	Messages    []memory.Message `json:"messages"`
	StartedAt   time.Time        `json:"startedAt"`
	EndedAt     time.Time        `json:"endedAt"`
}

// CompletionResult aggregates what a completion did. Skipped is set when the
// idempotency marker was already present and nothing mutated.
type CompletionResult struct {
	Relationship                 *store.Relationship `json:"relationship,omitempty"`
	MemoriesStored               int                 `json:"memoriesStored"`
	MemoriesConsignedToPreterite int                 `json:"memoriesConsignedToPreterite"`
	SessionQuality               float64             `json:"sessionQuality"`
	SettingsExtracted            int                 `json:"settingsExtracted"`
	Skipped                      bool                `json:"skipped,omitempty"`
	Error                        string              `json:"error,omitempty"`
}

// CompleteSession runs the idempotent end-of-session mutation: memory
// extraction and election, relationship update, and best-effort decay
// touches. A sessionId whose completion marker is already set returns a
// skipped result with zero mutation. Always returns a well-formed result;
// unexpected internal failure is reported in the Error field with any partial
// mutations left as-is.
func (o *Orchestrator) CompleteSession(ctx context.Context, data SessionData) CompletionResult {
	var result CompletionResult

	persona, err := o.DB.GetPersonaBySlug(data.PersonaSlug)
	if err != nil {
		result.Error = fmt.Sprintf("load persona: %v", err)
		return result
	}
	if persona == nil {
		result.Error = fmt.Sprintf("unknown persona %q", data.PersonaSlug)
		return result
	}

	// Idempotency gate: one check at the entry point covers relationship and
	// memory mutation both.
	session, err := o.DB.GetSession(data.SessionID)
	if err != nil {
		result.Error = fmt.Sprintf("check session: %v", err)
		return result
	}
	if session != nil && session.CompletedAt != nil {
		result.Skipped = true
		return result
	}
	if session == nil {
		if _, err := o.DB.EnsureSession(data.SessionID, persona.ID, data.UserID, data.StartedAt.UnixMilli()); err != nil {
			result.Error = fmt.Sprintf("ensure session: %v", err)
			return result
		}
	}

	duration := data.EndedAt.Sub(data.StartedAt)
	quality := relationship.SessionQuality{
		MessageCount: len(data.Messages),
		Duration:     duration,
		HadFollowUp:  countUserMessages(data.Messages) >= 3,
		TopicDepth:   memory.TopicDepth(data.Messages),
	}
	result.SessionQuality = relationship.CalculateEngagementScore(quality)

	// The session's final arc state sweetens insight extraction before the
	// arc is discarded in touchDecay.
	arcState, err := o.Arcs.Get(ctx, data.SessionID)
	if err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.arc", err)
		arcState = decay.NewArcState()
	}

	o.storeMemories(ctx, persona.ID, data, duration, arcState.Multipliers().InsightBonus, &result)
	o.extractSettings(persona.ID, data, &result)

	// Relationship update: the one familiarity bump this session gets.
	rel, fallback := o.Relationships.Ensure(persona.ID, data.UserID)
	if !fallback {
		if err := o.Relationships.ApplySessionDelta(rel, quality); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "complete.relationship", err)
		}
	}
	result.Relationship = rel

	// Decay touches are fire-and-forget: failures are logged and swallowed,
	// never propagated, never retried.
	o.touchDecay(ctx, persona.ID, data)

	if _, err := o.DB.MarkCompleted(data.SessionID, data.EndedAt.UnixMilli(), len(data.Messages)); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.marker", err)
		result.Error = fmt.Sprintf("mark completed: %v", err)
	}

	return result
}

// storeMemories extracts candidates from user turns, classifies each one's
// election status, persists elect/borderline rows, and consigns preterite
// candidates to their degraded form. insightBonus raises the importance of
// insight-typed candidates.
func (o *Orchestrator) storeMemories(ctx context.Context, personaID int64, data SessionData, duration time.Duration, insightBonus float64, result *CompletionResult) {
	now := o.Clock.Now()
	candidates := memory.ExtractCandidates(data.Messages, duration)

	for _, c := range candidates {
		importance := c.Importance
		if c.MemType == store.TypeInsight {
			importance += insightBonus
			if importance > 1 {
				importance = 1
			}
		}

		score := memory.CalculateElectionScore(c.Content, now, now, importance)
		election := memory.ClassifyElection(score)

		m := &store.Memory{
			PersonaID:     personaID,
			UserID:        data.UserID,
			Content:       c.Content,
			MemType:       c.MemType,
			Importance:    importance,
			Election:      election,
			SourceSession: data.SessionID,
		}

		if election == store.ElectionPreterite {
			// Degrade before the row ever lands; the original content is
			// never persisted.
			m.ID = newMemoryID()
			m.Content = memory.Redact(m.ID, c.Content)
			m.ResurfaceChance = memory.ResurfaceChance(now, now)
			if err := o.DB.InsertMemory(m); err != nil {
				diag.Degraded(o.Log, diag.StorageUnavailable, "complete.memory", err)
				continue
			}
			result.MemoriesConsignedToPreterite++
			continue
		}

		if err := o.DB.InsertMemory(m); err != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "complete.memory", err)
			continue
		}
		result.MemoriesStored++

		if o.Memories.Embedder != nil {
			if vec, err := o.Memories.Embedder.Embed(ctx, m.Content); err != nil {
				diag.Degraded(o.Log, diag.EmbeddingFailure, "complete.memory", err)
			} else if err := o.DB.SaveVector(m.ID, vec, o.Memories.Embedder.Model()); err != nil {
				diag.Degraded(o.Log, diag.StorageUnavailable, "complete.memory", err)
			}
		}
	}
}

func (o *Orchestrator) extractSettings(personaID int64, data SessionData, result *CompletionResult) {
	var contents []string
	for _, m := range data.Messages {
		if m.Role == "user" {
			contents = append(contents, m.Content)
		}
	}

	extracted := setting.ExtractFromMessages(contents)
	if extracted == nil {
		return
	}
	extracted.PersonaID = personaID
	extracted.UserID = data.UserID
	if err := o.DB.SaveUserSettings(extracted); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.settings", err)
		return
	}
	count := 0
	for _, v := range []string{extracted.Venue, extracted.MeetingTime, extracted.Mood} {
		if v != "" {
			count++
		}
	}
	result.SettingsExtracted = count
}

func (o *Orchestrator) touchDecay(ctx context.Context, personaID int64, data SessionData) {
	now := o.Clock.Now()

	// Entropy: decay to now, add the session's contribution, store.
	value := 0.0
	if state, err := o.DB.GetEntropy(personaID, data.UserID); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.entropy", err)
	} else if state != nil {
		value = o.Entropy.ApplyTemporalDecay(state.Value, msTime(state.UpdatedAt))
	}
	value = o.Entropy.SessionTouch(value)
	if err := o.DB.SaveEntropy(personaID, data.UserID, value, now.UnixMilli()); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.entropy", err)
	}

	if err := o.DB.TouchLastActive(personaID, data.UserID, now.UnixMilli()); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.temporal", err)
	}

	if err := o.Arcs.Delete(ctx, data.SessionID); err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "complete.arc", err)
	}
}

// newMemoryID mints the row id early so redaction can derive its stride from
// it before insert.
func newMemoryID() string {
	return uuid.NewString()
}

func countUserMessages(messages []memory.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == "user" {
			n++
		}
	}
	return n
}
