package memory

import (
	"sort"

	"github.com/lazypower/animus/internal/store"
)

// SelectMemories is the pure selection heuristic used when composing context.
// It always includes the single highest-importance memory as an anchor, fills
// further slots by recency for continuity, and spends any remainder on
// keyword overlap with the query. No id appears twice; at most max results;
// everything is returned when the input already fits.
func SelectMemories(candidates []store.Memory, query string, max int) []store.Memory {
	if max <= 0 || len(candidates) == 0 {
		return []store.Memory{}
	}
	if len(candidates) <= max {
		return append([]store.Memory{}, candidates...)
	}

	selected := make([]store.Memory, 0, max)
	used := make(map[string]bool)

	// Anchor: the single highest-importance memory.
	anchor := candidates[0]
	for _, m := range candidates[1:] {
		if m.Importance > anchor.Importance {
			anchor = m
		}
	}
	selected = append(selected, anchor)
	used[anchor.ID] = true

	// Continuity: most recent first.
	byRecency := append([]store.Memory{}, candidates...)
	sort.Slice(byRecency, func(i, j int) bool {
		return byRecency[i].CreatedAt > byRecency[j].CreatedAt
	})
	recencySlots := (max - 1) / 2
	for _, m := range byRecency {
		if len(selected) >= 1+recencySlots {
			break
		}
		if used[m.ID] {
			continue
		}
		selected = append(selected, m)
		used[m.ID] = true
	}

	// Remainder: keyword overlap with the query.
	queryTokens := tokenize(query, 3)
	type scored struct {
		mem     store.Memory
		overlap int
	}
	var rest []scored
	for _, m := range candidates {
		if used[m.ID] {
			continue
		}
		memTokens := make(map[string]bool)
		for _, t := range tokenize(m.Content, 3) {
			memTokens[t] = true
		}
		overlap := 0
		for _, t := range queryTokens {
			if memTokens[t] {
				overlap++
			}
		}
		rest = append(rest, scored{m, overlap})
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].overlap > rest[j].overlap
	})
	for _, r := range rest {
		if len(selected) >= max {
			break
		}
		selected = append(selected, r.mem)
		used[r.mem.ID] = true
	}

	return selected
}
