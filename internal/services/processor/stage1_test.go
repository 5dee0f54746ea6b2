package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/venator/internal/models"
)

func stage1Profile() *models.Profile {
	return &models.Profile{
		Name:      "test",
		Keywords:  []string{"python developer", "data engineer"},
		Locations: []string{"Toronto"},
		RemoteOK:  true,
	}
}

func stage1Record(title, location, url string) *models.JobRecord {
	now := time.Now().UTC()
	return &models.JobRecord{
		Fingerprint:   models.Fingerprint(title, "Acme", url, location),
		Title:         title,
		Company:       "Acme",
		Location:      location,
		CanonicalURL:  url,
		SourceSite:    "eluta",
		SearchKeyword: "python developer",
		ScrapedAt:     now,
		LastSeenAt:    now,
		Status:        models.StatusScraped,
		SchemaVersion: models.CurrentSchemaVersion,
	}
}

func TestEvaluateStage1Deterministic(t *testing.T) {
	record := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")
	profile := stage1Profile()

	a := EvaluateStage1(record, profile)
	b := EvaluateStage1(record, profile)
	assert.Equal(t, a, b)
}

func TestEvaluateStage1FullMatch(t *testing.T) {
	record := stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1")

	result := EvaluateStage1(record, stage1Profile())
	// Full title, location, and URL credit.
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Equal(t, "mid", result.Seniority)
	assert.Contains(t, result.Reasons, "url:valid")
}

func TestEvaluateStage1PartialKeywordCoverage(t *testing.T) {
	full := EvaluateStage1(stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1"), stage1Profile())
	half := EvaluateStage1(stage1Record("Developer", "Toronto, ON", "https://jobs.acme.com/1"), stage1Profile())
	none := EvaluateStage1(stage1Record("Forklift Operator", "Toronto, ON", "https://jobs.acme.com/1"), stage1Profile())

	assert.Greater(t, full.Score, half.Score)
	assert.Greater(t, half.Score, none.Score)
}

func TestEvaluateStage1RemoteWildcard(t *testing.T) {
	profile := stage1Profile()

	remote := EvaluateStage1(stage1Record("Python Developer", "Remote", "https://jobs.acme.com/1"), profile)
	assert.Contains(t, remote.Reasons, "location:remote")

	profile.RemoteOK = false
	noRemote := EvaluateStage1(stage1Record("Python Developer", "Remote", "https://jobs.acme.com/1"), profile)
	assert.Greater(t, remote.Score, noRemote.Score)
}

func TestEvaluateStage1InvalidURLCap(t *testing.T) {
	// A perfect match without a canonical URL cannot clear the default gate.
	noURL := EvaluateStage1(stage1Record("Python Developer", "Toronto, ON", ""), stage1Profile())
	assert.LessOrEqual(t, noURL.Score, invalidURLCap)
	assert.Contains(t, noURL.Reasons, "url:missing-or-listing")

	// A listing-site URL is as good as no URL.
	listing := EvaluateStage1(stage1Record("Python Developer", "Toronto, ON", "https://www.eluta.ca/search?q=python"), stage1Profile())
	assert.LessOrEqual(t, listing.Score, invalidURLCap)
}

func TestEvaluateStage1SeniorityPenalty(t *testing.T) {
	profile := stage1Profile()
	profile.SeniorityLevels = []string{"entry", "mid"}

	mid := EvaluateStage1(stage1Record("Python Developer", "Toronto, ON", "https://jobs.acme.com/1"), profile)
	senior := EvaluateStage1(stage1Record("Senior Python Developer", "Toronto, ON", "https://jobs.acme.com/2"), profile)

	assert.Equal(t, "senior", senior.Seniority)
	assert.InDelta(t, mid.Score*seniorityPenalty, senior.Score, 1e-9)
	assert.Contains(t, senior.Reasons, "seniority:senior-outside-target")
}

func TestClassifySeniority(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Senior Python Developer", "senior"},
		{"Sr. Data Engineer", "senior"},
		{"Staff Engineer", "senior"},
		{"Principal Architect", "senior"},
		{"Junior Developer", "entry"},
		{"Jr Developer", "entry"},
		{"Software Engineering Intern", "entry"},
		{"Graduate Analyst", "entry"},
		{"Python Developer", "mid"},
		{"Developer", "mid"},
	}
	for _, tt := range tests {
		if got := ClassifySeniority(tt.title); got != tt.want {
			t.Errorf("ClassifySeniority(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
