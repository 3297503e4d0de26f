package orchestrator

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/lazypower/animus/internal/diag"
)

// DefaultMaxTokens is the total assembly budget when the caller sets none.
const DefaultMaxTokens = 2000

// Per-component token sub-budgets. Components are truncated to these before
// the total budget is enforced.
var componentBudgets = map[string]int{
	componentVoice:     700,
	componentDrift:     150,
	componentRelation:  200,
	componentSetting:   150,
	componentTemporal:  100,
	componentNarrative: 80,
	componentEntropy:   80,
	componentAmbient:   150,
	componentMemories:  600,
}

// TokenCounter counts tokens with tiktoken's cl100k_base encoding, falling
// back to a chars/4 estimate when the encoding cannot be initialised (e.g.
// offline, no cached BPE data).
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	log  *zap.Logger
}

func NewTokenCounter(log *zap.Logger) *TokenCounter {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenCounter{log: log}
}

func (c *TokenCounter) init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		diag.Degraded(c.log, diag.TokenizerFallback, "orchestrator.budget", err)
		return
	}
	c.enc = enc
}

// Count returns the token count for text.
func (c *TokenCounter) Count(text string) int {
	c.once.Do(c.init)
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// Truncate trims text to at most maxTokens, cutting at a word boundary.
func (c *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || c.Count(text) <= maxTokens {
		return text
	}

	c.once.Do(c.init)
	if c.enc != nil {
		ids := c.enc.Encode(text, nil, nil)
		if len(ids) > maxTokens {
			ids = ids[:maxTokens]
		}
		return strings.TrimRight(c.enc.Decode(ids), " \n")
	}

	// Estimate path: 4 chars per token, cut back to the last space.
	limit := maxTokens * 4
	if limit >= len(text) {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \n")
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
