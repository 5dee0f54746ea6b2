package interfaces

import (
	"context"

	"github.com/ternarybob/venator/internal/models"
)

// Analysis is the semantic evaluation a stage2 analyzer produces for one
// job record.
type Analysis struct {
	SemanticScore   float64  `json:"semantic_score"` // in [0,1]
	Rationale       string   `json:"rationale"`
	ExtractedSkills []string `json:"extracted_skills,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
}

// Analyzer is the stage2 contract. Implementations must be re-entrant and
// safe to call in parallel; expensive variants cache by fingerprint so
// replays are free. Model unavailability surfaces as KindTransient and
// malformed model output as KindAdapterDrift; the processor treats both as
// "stage2 skipped".
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, record *models.JobRecord, profile *models.Profile) (*Analysis, error)
}
