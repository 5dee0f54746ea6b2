package models

import (
	"net/url"
	"strings"

	"github.com/ternarybob/venator/internal/common"
)

// ATSSystem is the applicant-tracking-system family inferred from the
// canonical URL's host.
type ATSSystem string

const (
	ATSWorkday    ATSSystem = "workday"
	ATSGreenhouse ATSSystem = "greenhouse"
	ATSICIMS      ATSSystem = "icims"
	ATSLever      ATSSystem = "lever"
	ATSBambooHR   ATSSystem = "bamboohr"
	ATSOther      ATSSystem = "other"
	ATSUnknown    ATSSystem = "unknown"
)

// atsHostMarkers maps host substrings to ATS families, checked in order.
var atsHostMarkers = []struct {
	marker string
	system ATSSystem
}{
	{"myworkdayjobs.com", ATSWorkday},
	{"workday.com", ATSWorkday},
	{"greenhouse.io", ATSGreenhouse},
	{"icims.com", ATSICIMS},
	{"lever.co", ATSLever},
	{"bamboohr.com", ATSBambooHR},
}

// DetectATS tags the ATS family from a canonical URL. Empty or listing-site
// URLs yield unknown; a resolvable employer host outside the known families
// yields other.
func DetectATS(canonicalURL string) ATSSystem {
	if canonicalURL == "" {
		return ATSUnknown
	}
	u, err := url.Parse(canonicalURL)
	if err != nil || u.Host == "" {
		return ATSUnknown
	}
	host := strings.ToLower(u.Host)
	if common.IsListingHost(host) {
		return ATSUnknown
	}
	for _, m := range atsHostMarkers {
		if host == m.marker || strings.HasSuffix(host, "."+m.marker) {
			return m.system
		}
	}
	return ATSOther
}
