package models

import "time"

// RunKind distinguishes run log entries.
type RunKind string

const (
	RunKindScrape  RunKind = "scrape"
	RunKindProcess RunKind = "process"
)

// RunLogEntry is one append-only record per scraper or processor invocation.
type RunLogEntry struct {
	ID        string         `json:"id" badgerhold:"key"` // run_<uuid>
	Profile   string         `json:"profile" badgerholdIndex:"Profile"`
	Kind      RunKind        `json:"kind"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Counters  map[string]int `json:"counters"`
	Cancelled bool           `json:"cancelled"`
	Error     string         `json:"error,omitempty"`
}
