package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/lazypower/animus/internal/diag"
)

// Component names, in priority order (first kept longest under budget
// pressure, last truncated first).
const (
	componentVoice     = "voice"
	componentDrift     = "driftCorrection"
	componentRelation  = "relationship"
	componentSetting   = "setting"
	componentTemporal  = "temporal"
	componentNarrative = "narrative"
	componentEntropy   = "entropy"
	componentAmbient   = "ambient"
	componentMemories  = "memories"
)

// componentPriority is the fixed composition order. Truncation walks it
// backwards.
var componentPriority = []string{
	componentVoice,
	componentDrift,
	componentRelation,
	componentSetting,
	componentTemporal,
	componentNarrative,
	componentEntropy,
	componentAmbient,
	componentMemories,
}

// Provider is the uniform fetch-or-null contract every optional sub-context
// goes through: it either returns usable text or an empty string, and any
// error it raises is caught, logged, and converted to null. A failing
// provider never blocks its siblings.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (string, error)
}

// providerFunc adapts a closure to the Provider interface.
type providerFunc struct {
	name string
	fn   func(ctx context.Context, req Request) (string, error)
}

func (p providerFunc) Name() string { return p.name }
func (p providerFunc) Fetch(ctx context.Context, req Request) (string, error) {
	return p.fn(ctx, req)
}

// fetchAll runs every provider concurrently and collects results into a
// name → text-or-null map. Each provider is locally fault-isolated: a panic
// or error in one never delays, cancels, or corrupts the others.
func (o *Orchestrator) fetchAll(ctx context.Context, providers []Provider, req Request) map[string]*string {
	components := make(map[string]*string, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			text := o.fetchOne(ctx, p, req)
			mu.Lock()
			components[p.Name()] = text
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return components
}

func (o *Orchestrator) fetchOne(ctx context.Context, p Provider, req Request) (result *string) {
	defer func() {
		if r := recover(); r != nil {
			diag.Degraded(o.Log, diag.StorageUnavailable, "provider."+p.Name(), fmt.Errorf("panic: %v", r))
			result = nil
		}
	}()

	text, err := p.Fetch(ctx, req)
	if err != nil {
		diag.Degraded(o.Log, diag.StorageUnavailable, "provider."+p.Name(), err)
		return nil
	}
	if text == "" {
		return nil
	}
	return &text
}
