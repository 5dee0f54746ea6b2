package models

import (
	"fmt"
	"strings"
	"time"
)

// ScrapeSummary reports the outcome of one scrape run. Counter identity:
// Inserted + Updated + Unchanged + DroppedCards == Seen; nothing is silently
// skipped.
type ScrapeSummary struct {
	RunID   string   `json:"run_id"`
	Profile string   `json:"profile"`
	Sites   []string `json:"sites"`

	Seen         int `json:"seen"` // cards extracted across all pages
	Inserted     int `json:"inserted"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	DroppedCards int `json:"dropped_cards"` // missing required fields or invalid records

	ResolveTimeouts int `json:"resolve_timeouts"`
	ResolveEmpty    int `json:"resolve_empty"`
	SelfLinks       int `json:"self_links"`

	TransientFailures map[string]int `json:"transient_failures,omitempty"` // per site
	AdapterDrift      map[string]int `json:"adapter_drift,omitempty"`      // per site

	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// DriftOnAllSites reports whether every requested site hit adapter drift.
func (s *ScrapeSummary) DriftOnAllSites() bool {
	if len(s.Sites) == 0 {
		return false
	}
	for _, site := range s.Sites {
		if s.AdapterDrift[site] == 0 {
			return false
		}
	}
	return true
}

// DriftOnAnySite reports whether at least one site hit adapter drift.
func (s *ScrapeSummary) DriftOnAnySite() bool {
	for _, n := range s.AdapterDrift {
		if n > 0 {
			return true
		}
	}
	return false
}

// String renders the one-line summary the CLI prints.
func (s *ScrapeSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scrape %s: seen=%d inserted=%d updated=%d unchanged=%d dropped=%d timeouts=%d",
		s.Profile, s.Seen, s.Inserted, s.Updated, s.Unchanged, s.DroppedCards, s.ResolveTimeouts)
	if s.DriftOnAnySite() {
		fmt.Fprintf(&b, " drift=%v", s.AdapterDrift)
	}
	if s.Cancelled {
		b.WriteString(" cancelled")
	}
	fmt.Fprintf(&b, " in %s", s.Duration.Round(time.Millisecond))
	return b.String()
}

// ProcessSummary reports the outcome of one processing run.
type ProcessSummary struct {
	RunID   string `json:"run_id"`
	Profile string `json:"profile"`

	Stage1Scored  int `json:"stage1_scored"`
	Stage1Skipped int `json:"stage1_skipped"` // lost the status CAS to a concurrent processor
	Invalid       int `json:"invalid"`

	GatePassed    int `json:"gate_passed"`
	Stage2Scored  int `json:"stage2_scored"`
	Stage2Skipped int `json:"stage2_skipped"` // transient or drift failures, record stays at stage1_scored
	Processed     int `json:"processed"`

	Cancelled      bool          `json:"cancelled"`
	Stage1Duration time.Duration `json:"stage1_duration"`
	Stage2Duration time.Duration `json:"stage2_duration"`
}

// String renders the one-line summary the CLI prints.
func (s *ProcessSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "process %s: stage1=%d gate_passed=%d stage2=%d processed=%d stage2_skipped=%d invalid=%d",
		s.Profile, s.Stage1Scored, s.GatePassed, s.Stage2Scored, s.Processed, s.Stage2Skipped, s.Invalid)
	if s.Cancelled {
		b.WriteString(" cancelled")
	}
	fmt.Fprintf(&b, " (stage1 %s, stage2 %s)",
		s.Stage1Duration.Round(time.Millisecond), s.Stage2Duration.Round(time.Millisecond))
	return b.String()
}

// StoreStats are the aggregate counts the stats command and the dashboard
// poll from the store.
type StoreStats struct {
	Total    int               `json:"total"`
	ByStatus map[JobStatus]int `json:"by_status"`
	BySite   map[string]int    `json:"by_site"`
	Last24h  int               `json:"last_24h"` // records seen in the last 24 hours
}
