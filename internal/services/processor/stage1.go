package processor

import (
	"fmt"
	"strings"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/models"
)

// Stage1Result is the outcome of the fast deterministic filter.
type Stage1Result struct {
	Score     float64
	Reasons   []string
	Seniority string
}

// Component weights for the stage1 score. URL validity is handled as a cap
// rather than a weight: a record without a usable canonical URL can never
// clear the default gate.
const (
	titleWeight    = 0.45
	locationWeight = 0.25
	urlWeight      = 0.30

	// invalidURLCap bounds the score of records with no canonical URL.
	invalidURLCap = 0.30
	// seniorityPenalty scales the score when the title's seniority falls
	// outside the profile's target levels.
	seniorityPenalty = 0.5
)

// seniorTokens and entryTokens classify a title's seniority band.
var seniorTokens = []string{"senior", "sr", "snr", "staff", "principal", "lead", "head", "director"}
var entryTokens = []string{"junior", "jr", "jnr", "intern", "internship", "entry", "graduate", "trainee"}

// EvaluateStage1 scores one record against a profile. Purely functional:
// identical inputs always yield identical outputs, so replays and tests are
// deterministic.
func EvaluateStage1(record *models.JobRecord, profile *models.Profile) Stage1Result {
	var reasons []string
	score := 0.0

	titleScore, titleReason := scoreTitle(record.Title, profile.Keywords)
	score += titleWeight * titleScore
	reasons = append(reasons, titleReason)

	locScore, locReason := scoreLocation(record.Location, profile)
	score += locationWeight * locScore
	reasons = append(reasons, locReason)

	urlValid := record.CanonicalURL != "" &&
		!common.IsListingSiteURL(record.CanonicalURL) &&
		!common.IsSearchSelfLink(record.CanonicalURL)
	if urlValid {
		score += urlWeight
		reasons = append(reasons, "url:valid")
	} else {
		reasons = append(reasons, "url:missing-or-listing")
	}

	seniority := ClassifySeniority(record.Title)
	if profile.TargetsSeniority(seniority) {
		reasons = append(reasons, "seniority:"+seniority)
	} else {
		score *= seniorityPenalty
		reasons = append(reasons, fmt.Sprintf("seniority:%s-outside-target", seniority))
	}

	if !urlValid && score > invalidURLCap {
		score = invalidURLCap
	}
	if score > 1 {
		score = 1
	}

	return Stage1Result{Score: score, Reasons: reasons, Seniority: seniority}
}

// scoreTitle measures keyword relevance: the best keyword's token coverage
// in the normalized title.
func scoreTitle(title string, keywords []string) (float64, string) {
	if len(keywords) == 0 {
		return 1, "title:no-keywords-configured"
	}
	titleTokens := tokenSet(models.NormalizeTitle(title))

	best := 0.0
	bestKeyword := ""
	for _, keyword := range keywords {
		kwTokens := strings.Fields(models.NormalizeTitle(keyword))
		if len(kwTokens) == 0 {
			continue
		}
		hits := 0
		for _, t := range kwTokens {
			if titleTokens[t] {
				hits++
			}
		}
		coverage := float64(hits) / float64(len(kwTokens))
		if coverage > best {
			best = coverage
			bestKeyword = keyword
		}
	}

	if best == 0 {
		return 0, "title:no-keyword-match"
	}
	return best, fmt.Sprintf("title:matched %q (%.0f%%)", bestKeyword, best*100)
}

// scoreLocation matches the record's location against the profile's
// preferences. Remote postings count as a wildcard when the profile allows
// remote work.
func scoreLocation(location string, profile *models.Profile) (float64, string) {
	if len(profile.Locations) == 0 {
		return 1, "location:no-preference"
	}

	loc := strings.ToLower(location)
	if profile.RemoteOK && (strings.Contains(loc, "remote") || strings.Contains(loc, "anywhere")) {
		return 1, "location:remote"
	}
	for _, want := range profile.Locations {
		w := strings.ToLower(strings.TrimSpace(want))
		if w != "" && strings.Contains(loc, w) {
			return 1, "location:matched " + want
		}
	}
	return 0, "location:no-match"
}

// ClassifySeniority buckets a title into entry, mid, or senior from its
// tokens.
func ClassifySeniority(title string) string {
	tokens := tokenSet(strings.ToLower(title))
	for _, t := range seniorTokens {
		if tokens[t] {
			return "senior"
		}
	}
	for _, t := range entryTokens {
		if tokens[t] {
			return "entry"
		}
	}
	return "mid"
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[strings.Trim(t, ".,()-/")] = true
	}
	return set
}
