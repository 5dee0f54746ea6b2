package common

import (
	"net/url"
	"sort"
	"strings"
)

// listingHosts are the job-board domains the scraper searches. A URL on one
// of these hosts is never a canonical employer URL.
var listingHosts = []string{
	"eluta.ca",
	"indeed.com",
	"linkedin.com",
	"monster.ca",
	"monster.com",
	"jobbank.gc.ca",
	"towardsai.net",
}

// trackingParams are query parameters stripped during URL normalization.
// Prefix match for utm_*; exact match for the rest.
var trackingParams = map[string]bool{
	"gclid":      true,
	"fbclid":     true,
	"msclkid":    true,
	"ref":        true,
	"source":     true,
	"sid":        true,
	"sessionid":  true,
	"session_id": true,
	"jsessionid": true,
	"phpsessid":  true,
	"trk":        true,
	"trackingid": true,
}

// searchParams are the query keys that mark a listing site's own search
// page. Links carrying them are self-links, never canonical URLs.
var searchParams = []string{"q", "pg", "posted"}

// IsListingHost reports whether host belongs to one of the supported
// listing sites (subdomains included).
func IsListingHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, lh := range listingHosts {
		if host == lh || strings.HasSuffix(host, "."+lh) {
			return true
		}
	}
	return false
}

// IsListingSiteURL reports whether rawURL points at a listing site rather
// than an employer domain.
func IsListingSiteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return IsListingHost(u.Host)
}

// IsSearchSelfLink reports whether rawURL is a listing site's own search
// page (e.g. /search?q=python&pg=2). These are discarded as invalid
// canonical URLs regardless of shape.
func IsSearchSelfLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query()
	for _, key := range searchParams {
		if q.Has(key) {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "/search") || strings.Contains(path, "/jobsearch")
}

// NormalizeURL canonicalizes a URL for fingerprinting and comparison:
// lowercase scheme/host, fragment dropped, tracking parameters removed,
// remaining query keys sorted, trailing slash trimmed. When the path is
// empty and no query survives, only the host is returned so that
// host-level duplicates collide.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	kept := url.Values{}
	for key, vals := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			continue
		}
		for _, v := range vals {
			kept.Add(key, v)
		}
	}

	if path == "" && len(kept) == 0 {
		return host
	}

	var b strings.Builder
	b.WriteString(host)
	b.WriteString(path)
	if len(kept) > 0 {
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("?")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(strings.Join(kept[k], ","))
		}
	}
	return b.String()
}

// AbsoluteURL resolves href against the page it appeared on. Returns empty
// when neither side parses.
func AbsoluteURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
