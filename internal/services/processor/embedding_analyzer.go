package processor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/services/llm"
)

// EmbeddingAnalyzer scores fit as the cosine similarity between the
// profile's text and the posting's text in embedding space. Cheaper than
// the LLM variant per record and immune to malformed-output drift.
type EmbeddingAnalyzer struct {
	factory *llm.ProviderFactory
	logger  arbor.ILogger
}

func NewEmbeddingAnalyzer(factory *llm.ProviderFactory, logger arbor.ILogger) *EmbeddingAnalyzer {
	return &EmbeddingAnalyzer{factory: factory, logger: logger}
}

func (a *EmbeddingAnalyzer) Name() string { return "embedding" }

func (a *EmbeddingAnalyzer) Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*interfaces.Analysis, error) {
	const op = "analyzer.embedding"

	profileText := strings.Join(append(append([]string{}, profile.Skills...), profile.Keywords...), ", ")
	jobText := strings.Join([]string{record.Title, record.Summary, record.Description}, "\n")
	if len(jobText) > 8000 {
		jobText = jobText[:8000]
	}

	vectors, err := a.factory.EmbedTexts(ctx, []string{profileText, jobText})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 2 {
		return nil, common.Ef(common.KindTransient, op, "expected 2 embeddings, got %d", len(vectors))
	}

	similarity := cosineSimilarity(vectors[0], vectors[1])
	// Map [-1,1] into [0,1]; in practice text embeddings sit well above 0.
	score := (similarity + 1) / 2
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return &interfaces.Analysis{
		SemanticScore: score,
		Rationale:     fmt.Sprintf("embedding cosine similarity %.3f", similarity),
	}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
