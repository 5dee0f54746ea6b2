package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// HeuristicAnalyzer is the no-dependency stage2 variant: token overlap
// between the profile's skills and keywords and the record's text. It never
// fails and needs no cache.
type HeuristicAnalyzer struct{}

func NewHeuristicAnalyzer() *HeuristicAnalyzer { return &HeuristicAnalyzer{} }

func (a *HeuristicAnalyzer) Name() string { return "heuristic" }

func (a *HeuristicAnalyzer) Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*interfaces.Analysis, error) {
	jobText := strings.ToLower(strings.Join([]string{
		record.Title, record.Summary, record.Description,
		strings.Join(record.Requirements, " "),
	}, " "))

	wanted := append(append([]string{}, profile.Skills...), profile.Keywords...)
	if len(wanted) == 0 {
		return &interfaces.Analysis{
			SemanticScore: 0.5,
			Rationale:     "no skills or keywords configured; neutral score",
		}, nil
	}

	var matched []string
	for _, skill := range wanted {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s != "" && strings.Contains(jobText, s) {
			matched = append(matched, skill)
		}
	}

	score := float64(len(matched)) / float64(len(wanted))
	return &interfaces.Analysis{
		SemanticScore:   score,
		Rationale:       fmt.Sprintf("matched %d of %d profile terms", len(matched), len(wanted)),
		ExtractedSkills: matched,
	}, nil
}
