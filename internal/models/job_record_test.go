package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
)

func validRecord() *JobRecord {
	now := time.Now().UTC()
	return &JobRecord{
		Fingerprint:   Fingerprint("Developer", "Acme", "https://jobs.acme.com/1", ""),
		Title:         "Developer",
		Company:       "Acme",
		Location:      "Toronto, ON",
		CanonicalURL:  "https://jobs.acme.com/1",
		SourceSite:    "eluta",
		SearchKeyword: "developer",
		ScrapedAt:     now,
		LastSeenAt:    now,
		Status:        StatusScraped,
		SchemaVersion: CurrentSchemaVersion,
	}
}

func TestJobRecordValidate(t *testing.T) {
	t.Run("valid record passes", func(t *testing.T) {
		require.NoError(t, validRecord().Validate())
	})

	t.Run("empty title fails", func(t *testing.T) {
		r := validRecord()
		r.Title = ""
		err := r.Validate()
		require.Error(t, err)
		assert.Equal(t, common.KindInvalid, common.KindOf(err))
	})

	t.Run("no company and no url fails", func(t *testing.T) {
		r := validRecord()
		r.Company = ""
		r.CanonicalURL = ""
		require.Error(t, r.Validate())
	})

	t.Run("listing search link as canonical url fails", func(t *testing.T) {
		r := validRecord()
		r.CanonicalURL = "https://www.eluta.ca/search?q=python&pg=2"
		require.Error(t, r.Validate())
	})

	t.Run("stage2 score outside range fails", func(t *testing.T) {
		r := validRecord()
		bad := 1.5
		r.Status = StatusStage1Scored
		r.Stage2Score = &bad
		require.Error(t, r.Validate())
	})

	t.Run("stage2 score in scraped status fails", func(t *testing.T) {
		r := validRecord()
		score := 0.8
		r.Stage2Score = &score
		require.Error(t, r.Validate())
	})

	t.Run("timestamps out of order fail", func(t *testing.T) {
		r := validRecord()
		r.Stage1At = r.ScrapedAt.Add(-time.Hour)
		require.Error(t, r.Validate())
	})
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusScraped.CanAdvanceTo(StatusStage1Scored))
	assert.True(t, StatusStage1Scored.CanAdvanceTo(StatusProcessed))

	assert.False(t, StatusScraped.CanAdvanceTo(StatusProcessed))
	assert.False(t, StatusProcessed.CanAdvanceTo(StatusScraped))
	assert.False(t, StatusStage1Scored.CanAdvanceTo(StatusScraped))
}

func TestMergeDiscovery(t *testing.T) {
	t.Run("incoming non-empty fills empty", func(t *testing.T) {
		existing := validRecord()
		existing.SalaryText = ""
		incoming := validRecord()
		incoming.SalaryText = "$100k"

		changed := existing.MergeDiscovery(incoming)
		assert.True(t, changed)
		assert.Equal(t, "$100k", existing.SalaryText)
	})

	t.Run("incoming empty never clears existing", func(t *testing.T) {
		existing := validRecord()
		existing.SalaryText = "$100k"
		incoming := validRecord()
		incoming.SalaryText = ""

		changed := existing.MergeDiscovery(incoming)
		assert.False(t, changed)
		assert.Equal(t, "$100k", existing.SalaryText)
	})

	t.Run("scores and keyword untouched", func(t *testing.T) {
		existing := validRecord()
		existing.Stage1Score = 0.7
		existing.SearchKeyword = "python"
		incoming := validRecord()
		incoming.Stage1Score = 0.1
		incoming.SearchKeyword = "developer"

		existing.MergeDiscovery(incoming)
		assert.Equal(t, 0.7, existing.Stage1Score)
		assert.Equal(t, "python", existing.SearchKeyword)
	})
}

func TestDetectATS(t *testing.T) {
	tests := []struct {
		url  string
		want ATSSystem
	}{
		{"https://acme.wd5.myworkdayjobs.com/en-US/careers/job/42", ATSWorkday},
		{"https://boards.greenhouse.io/acme/jobs/123", ATSGreenhouse},
		{"https://careers-acme.icims.com/jobs/123", ATSICIMS},
		{"https://jobs.lever.co/acme/abc", ATSLever},
		{"https://acme.bamboohr.com/careers/42", ATSBambooHR},
		{"https://jobs.acme.com/apply/42", ATSOther},
		{"https://www.eluta.ca/search?q=x", ATSUnknown},
		{"", ATSUnknown},
	}
	for _, tt := range tests {
		if got := DetectATS(tt.url); got != tt.want {
			t.Errorf("DetectATS(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}
