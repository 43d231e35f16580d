// Package analysis holds the LLM pipelines that turn scraped LinkedIn posts
// into interest phrases, style notes, drafted posts and phrase-level trends.
// Every function takes the run-scoped provider so caller credentials never
// leak into shared state.
package analysis

import (
	"log"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/helpers"
)

// Analyzer bounds the prompt corpora fed to the model.
type Analyzer struct {
	corpusLimit int
	maxImages   int
	logger      *log.Logger
}

func NewAnalyzer(cfg config.AgentConfig) *Analyzer {
	limit := cfg.CorpusCharLimit
	if limit <= 0 {
		limit = 15000
	}
	return &Analyzer{
		corpusLimit: limit,
		maxImages:   5,
		logger:      log.New(log.Writer(), "[ANALYSIS] ", log.LstdFlags),
	}
}

// capCorpus bounds prompt input by bytes, the same cap applied to every
// corpus in this package.
func (a *Analyzer) capCorpus(s string) string {
	if len(s) > a.corpusLimit {
		return s[:a.corpusLimit]
	}
	return s
}

// stripFences unwraps the JSON payload models bury in code fences or prose.
// Replies with no JSON at all still get their fence markers removed for the
// line-split fallbacks.
func stripFences(s string) string {
	if out, err := helpers.ExtractJSON(s); err == nil {
		return out
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
