package processor

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/services/llm"
)

// NewAnalyzer builds the configured stage2 analyzer. The heuristic variant
// is free and uncached; the model-backed variants wrap in the
// fingerprint-keyed cache so replays cost nothing.
func NewAnalyzer(cfg *common.Config, factory *llm.ProviderFactory, kv interfaces.KeyValueStore, logger arbor.ILogger) (interfaces.Analyzer, error) {
	switch cfg.Processor.Analyzer {
	case "", "heuristic":
		return NewHeuristicAnalyzer(), nil
	case "llm":
		return NewCachedAnalyzer(NewLLMAnalyzer(factory, "", logger), kv, logger), nil
	case "embedding":
		return NewCachedAnalyzer(NewEmbeddingAnalyzer(factory, logger), kv, logger), nil
	default:
		return nil, common.Ef(common.KindInvalid, "processor.new_analyzer",
			"unknown analyzer %q (want heuristic, llm, or embedding)", cfg.Processor.Analyzer)
	}
}
