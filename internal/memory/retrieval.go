package memory

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/diag"
	"github.com/lazypower/animus/internal/store"
)

// Hybrid scoring weights and floors for semantic retrieval.
const (
	similarityWeight = 0.5
	recencyWeight    = 0.25
	importanceWeight = 0.25
	similarityFloor  = 0.3
	recencyWindow    = 30 * 24 * time.Hour
)

// Service is the memory retrieval/storage pipeline. Embedder may be nil; the
// service degrades through keyword search down to importance ordering and
// never returns an error from Retrieve. Safe for concurrent use; the rng is
// guarded by rngMu.
type Service struct {
	DB       *store.DB
	Embedder Embedder
	Clock    decay.Clock
	Log      *zap.Logger
	rngMu    sync.Mutex
	rng      *rand.Rand
}

func NewService(db *store.DB, embedder Embedder, clock decay.Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = decay.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		DB:       db,
		Embedder: embedder,
		Clock:    clock,
		Log:      log,
		rng:      rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Retrieve returns up to limit memories relevant to the query, trying
// semantic search, then keyword search, then plain importance+recency
// ordering. All three paths share this entry point; total failure returns an
// empty list, never an error. resurfaceBoost raises each preterite row's
// resurfacing chance for this call; the narrative arc phase feeds it.
func (s *Service) Retrieve(ctx context.Context, personaID int64, userID, query string, limit int, resurfaceBoost float64) []store.Memory {
	if limit <= 0 {
		limit = 5
	}

	candidates, err := s.retrievable(personaID, userID, resurfaceBoost)
	if err != nil {
		diag.Degraded(s.Log, diag.StorageUnavailable, "memory.retrieve", err)
		return []store.Memory{}
	}
	if len(candidates) == 0 {
		return []store.Memory{}
	}

	if s.Embedder != nil {
		if results, ok := s.semantic(ctx, personaID, userID, query, candidates, limit); ok {
			return results
		}
	}

	tokens := tokenize(query, 3)
	if len(tokens) > 0 {
		return s.keyword(candidates, tokens, limit)
	}

	return s.byImportance(candidates, limit)
}

// retrievable loads elect memories plus any preterite rows that win their
// resurfacing roll this call.
func (s *Service) retrievable(personaID int64, userID string, resurfaceBoost float64) ([]store.Memory, error) {
	all, err := s.DB.ListMemories(personaID, userID, "")
	if err != nil {
		return nil, err
	}

	var out []store.Memory
	for _, m := range all {
		switch m.Election {
		case store.ElectionElect, store.ElectionBorderline:
			out = append(out, m)
		case store.ElectionPreterite:
			chance := m.ResurfaceChance
			if chance > 0 {
				chance += resurfaceBoost
			}
			if chance > 1 {
				chance = 1
			}
			if chance > 0 && s.roll() < chance {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (s *Service) roll() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// semantic runs embedding search blended with recency and importance.
// Returns ok=false when the embedding path is unavailable so the caller can
// fall back.
func (s *Service) semantic(ctx context.Context, personaID int64, userID, query string, candidates []store.Memory, limit int) ([]store.Memory, bool) {
	queryVec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		diag.Degraded(s.Log, diag.EmbeddingFailure, "memory.retrieve", err)
		return nil, false
	}

	vectors, err := s.DB.VectorsForOwner(personaID, userID)
	if err != nil {
		diag.Degraded(s.Log, diag.StorageUnavailable, "memory.retrieve", err)
		return nil, false
	}
	if len(vectors) == 0 {
		return nil, false
	}

	vecMap := make(map[string][]float64, len(vectors))
	for _, v := range vectors {
		vecMap[v.MemoryID] = v.Embedding
	}

	now := s.Clock.Now()
	type scored struct {
		mem   store.Memory
		score float64
	}
	var results []scored
	for _, m := range candidates {
		vec, ok := vecMap[m.ID]
		if !ok {
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < similarityFloor {
			continue
		}
		results = append(results, scored{m, hybridScore(sim, m, now)})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]store.Memory, 0, len(results))
	for _, r := range results {
		out = append(out, r.mem)
	}
	return out, true
}

func hybridScore(similarity float64, m store.Memory, now time.Time) float64 {
	age := now.Sub(time.UnixMilli(m.CreatedAt))
	recency := math.Max(0, 1.0-float64(age)/float64(recencyWindow))
	return similarityWeight*similarity + recencyWeight*recency + importanceWeight*m.Importance
}

// keyword scores memories by overlap with query tokens of ≥3 characters.
func (s *Service) keyword(candidates []store.Memory, tokens []string, limit int) []store.Memory {
	type scored struct {
		mem     store.Memory
		overlap int
	}
	var results []scored
	for _, m := range candidates {
		memTokens := make(map[string]bool)
		for _, t := range tokenize(m.Content, 3) {
			memTokens[t] = true
		}
		overlap := 0
		for _, t := range tokens {
			if memTokens[t] {
				overlap++
			}
		}
		if overlap > 0 {
			results = append(results, scored{m, overlap})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].overlap != results[j].overlap {
			return results[i].overlap > results[j].overlap
		}
		return results[i].mem.Importance > results[j].mem.Importance
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if len(results) == 0 {
		// Nothing overlapped the query at all; the ordering that follows
		// carries no relevance signal.
		diag.Degraded(s.Log, diag.LowConfidence, "memory.retrieve", nil)
		return s.byImportance(candidates, limit)
	}

	out := make([]store.Memory, 0, len(results))
	for _, r := range results {
		out = append(out, r.mem)
	}
	return out
}

// byImportance is the last-resort ordering: importance blended with recency.
func (s *Service) byImportance(candidates []store.Memory, limit int) []store.Memory {
	now := s.Clock.Now()
	sorted := append([]store.Memory{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return fallbackScore(sorted[i], now) > fallbackScore(sorted[j], now)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func fallbackScore(m store.Memory, now time.Time) float64 {
	age := now.Sub(time.UnixMilli(m.CreatedAt))
	recency := math.Max(0, 1.0-float64(age)/float64(recencyWindow))
	return 0.6*m.Importance + 0.4*recency
}
