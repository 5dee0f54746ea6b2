package models

import (
	"time"

	"github.com/ternarybob/venator/internal/common"
)

// JobStatus represents the processing state of a job record.
//
// Transitions only move forward:
//
//	scraped -> stage1_scored -> processed
//
// The only backwards move is an explicit re-scrape reset, which returns a
// record to scraped while preserving its fingerprint.
type JobStatus string

const (
	StatusScraped      JobStatus = "scraped"
	StatusStage1Scored JobStatus = "stage1_scored"
	StatusProcessed    JobStatus = "processed"
)

// statusTransitions is the forward edge set of the status state machine.
var statusTransitions = map[JobStatus][]JobStatus{
	StatusScraped:      {StatusStage1Scored},
	StatusStage1Scored: {StatusProcessed},
	StatusProcessed:    {},
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition.
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s JobStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// UpsertResult describes the outcome of a store upsert.
type UpsertResult int

const (
	UpsertInserted UpsertResult = iota
	UpsertUpdated
	UpsertUnchanged
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// CurrentSchemaVersion is the record schema version written by this build.
// Records carrying an older version are read-migrated on first access.
const CurrentSchemaVersion = 1

// JobRecord is the canonical job entity. A record is exclusively owned by
// one profile's store; the same posting scraped under two profiles yields
// two independent records.
type JobRecord struct {
	// Fingerprint is the stable 128-bit identity hash (32 hex chars).
	Fingerprint string `json:"fingerprint" badgerhold:"key"`

	// Discovery fields, written by the scraper.
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	CanonicalURL   string    `json:"canonical_url,omitempty"` // employer-side URL; never a listing-site search URL
	SourceSite     string    `json:"source_site"`
	SearchKeyword  string    `json:"search_keyword"` // frozen on first insert
	SearchLocation string    `json:"search_location"`
	ScrapedAt      time.Time `json:"scraped_at"` // preserved from first insert
	LastSeenAt     time.Time `json:"last_seen_at" badgerholdIndex:"LastSeenAt"`

	// Optional discovery fields.
	SalaryText      string    `json:"salary_text,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Description     string    `json:"description,omitempty"` // markdown
	JobType         string    `json:"job_type,omitempty"`
	PostedText      string    `json:"posted_text,omitempty"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
	ExtractedSkills []string  `json:"extracted_skills,omitempty"`
	Requirements    []string  `json:"requirements,omitempty"`
	ATSSystem       ATSSystem `json:"ats_system,omitempty"`

	// Processing fields, mutated only by the processor.
	Stage1Score     float64   `json:"stage1_score"`
	Stage1Reasons   []string  `json:"stage1_reasons,omitempty"`
	Stage1At        time.Time `json:"stage1_at,omitempty"`
	Stage2Score     *float64  `json:"stage2_score,omitempty"` // nil = absent; present only past the stage1 gate
	Stage2Rationale string    `json:"stage2_rationale,omitempty"`
	Stage2At        time.Time `json:"stage2_at,omitempty"`
	FinalScore      float64   `json:"final_score"`
	ProcessedAt     time.Time `json:"processed_at,omitempty"`

	Status        JobStatus `json:"status" badgerholdIndex:"Status"`
	SchemaVersion int       `json:"schema_version"`
}

// Validate checks the record against its documented contract. Violations
// surface as KindInvalid and are never retried.
func (r *JobRecord) Validate() error {
	const op = "record.validate"

	if r.Title == "" {
		return common.Ef(common.KindInvalid, op, "title is empty")
	}
	if r.Company == "" && r.CanonicalURL == "" {
		return common.Ef(common.KindInvalid, op, "company is empty and no canonical URL is set")
	}
	if r.Fingerprint == "" {
		return common.Ef(common.KindInvalid, op, "fingerprint is empty")
	}
	if !ValidStatus(r.Status) {
		return common.Ef(common.KindInvalid, op, "unknown status %q", r.Status)
	}
	if r.CanonicalURL != "" && common.IsSearchSelfLink(r.CanonicalURL) && common.IsListingSiteURL(r.CanonicalURL) {
		return common.Ef(common.KindInvalid, op, "canonical URL %q is a listing-site search link", r.CanonicalURL)
	}
	if r.Stage1Score < 0 || r.Stage1Score > 1 {
		return common.Ef(common.KindInvalid, op, "stage1 score %f outside [0,1]", r.Stage1Score)
	}
	if r.Stage2Score != nil {
		if *r.Stage2Score < 0 || *r.Stage2Score > 1 {
			return common.Ef(common.KindInvalid, op, "stage2 score %f outside [0,1]", *r.Stage2Score)
		}
		if r.Status != StatusStage1Scored && r.Status != StatusProcessed {
			return common.Ef(common.KindInvalid, op, "stage2 score present in status %q", r.Status)
		}
	}
	if err := r.validateTimestamps(); err != nil {
		return err
	}
	return nil
}

// validateTimestamps enforces scraped_at <= stage1_at <= stage2_at <=
// processed_at for the timestamps that exist.
func (r *JobRecord) validateTimestamps() error {
	const op = "record.validate"
	last := r.ScrapedAt
	for _, next := range []time.Time{r.Stage1At, r.Stage2At, r.ProcessedAt} {
		if next.IsZero() {
			continue
		}
		if next.Before(last) {
			return common.Ef(common.KindInvalid, op, "processing timestamps out of order")
		}
		last = next
	}
	return nil
}

// MergeDiscovery applies the upsert merge policy: incoming non-empty values
// overwrite existing empty values, incoming empty values never overwrite
// existing non-empty values, and scoring/status/search_keyword/scraped_at
// are left untouched. Returns true when any field changed.
func (r *JobRecord) MergeDiscovery(in *JobRecord) bool {
	changed := false

	mergeStr := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}

	mergeStr(&r.Company, in.Company)
	mergeStr(&r.Location, in.Location)
	mergeStr(&r.CanonicalURL, in.CanonicalURL)
	mergeStr(&r.SearchLocation, in.SearchLocation)
	mergeStr(&r.SalaryText, in.SalaryText)
	mergeStr(&r.Summary, in.Summary)
	mergeStr(&r.Description, in.Description)
	mergeStr(&r.JobType, in.JobType)
	mergeStr(&r.PostedText, in.PostedText)
	mergeStr(&r.ExperienceLevel, in.ExperienceLevel)

	if len(r.ExtractedSkills) == 0 && len(in.ExtractedSkills) > 0 {
		r.ExtractedSkills = append([]string(nil), in.ExtractedSkills...)
		changed = true
	}
	if len(r.Requirements) == 0 && len(in.Requirements) > 0 {
		r.Requirements = append([]string(nil), in.Requirements...)
		changed = true
	}
	if (r.ATSSystem == "" || r.ATSSystem == ATSUnknown) && in.ATSSystem != "" && in.ATSSystem != ATSUnknown {
		r.ATSSystem = in.ATSSystem
		changed = true
	}

	return changed
}

// PassesGate reports whether the record cleared the stage1 threshold.
func (r *JobRecord) PassesGate(threshold float64) bool {
	return r.Stage1Score >= threshold
}
