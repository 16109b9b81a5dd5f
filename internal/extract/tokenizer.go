package extract

import (
	"os"
	"sync"

	"github.com/daulet/tokenizers"
)

// Estimator counts tokens for text that never carries provider-reported
// usage (debug logging, estimated_input_tokens on streamed requests
// whose response never reports token counts). It wraps a local
// tokenizer when a vocabulary file is configured, and otherwise falls
// back to a length heuristic.
type Estimator struct {
	mu  sync.Mutex
	tok *tokenizers.Tokenizer
}

// NewEstimator loads a tokenizer vocabulary from vocabPath. An empty
// path, or a load failure, leaves the estimator in heuristic-only mode.
func NewEstimator(vocabPath string) *Estimator {
	e := &Estimator{}
	if vocabPath == "" {
		return e
	}
	if _, err := os.Stat(vocabPath); err != nil {
		return e
	}
	tok, err := tokenizers.FromFile(vocabPath)
	if err != nil {
		return e
	}
	e.tok = tok
	return e
}

// Close releases the underlying tokenizer, if one was loaded.
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tok != nil {
		e.tok.Close()
		e.tok = nil
	}
}

// CountTokens returns the token count for text. When no vocabulary was
// loaded it falls back to a len(text)/4 heuristic, which approximates
// English text reasonably well for estimated-cost display but should
// never be trusted for billing-accurate figures.
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	e.mu.Lock()
	tok := e.tok
	e.mu.Unlock()
	if tok == nil {
		return heuristicTokenCount(text)
	}
	ids, _ := tok.Encode(text, true)
	return len(ids)
}

// EstimateRequestTokens fills in fields.EstimatedTokens from its
// TotalText and returns the updated copy, for use before a response
// (and its real usage numbers) has arrived.
func (e *Estimator) EstimateRequestTokens(fields RequestFields) RequestFields {
	fields.EstimatedTokens = e.CountTokens(fields.TotalText)
	return fields
}

func heuristicTokenCount(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
