package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/ternarybob/venator/internal/common"
)

// titleStopPrefixes are seniority markers stripped from the front of titles
// before hashing, so "Sr. Python Developer" and "Senior Python Developer"
// fingerprint identically.
var titleStopPrefixes = []string{
	"sr", "snr", "senior",
	"jr", "jnr", "junior",
	"lead", "principal", "staff",
}

// Fingerprint computes the stable 128-bit identity of a posting as a 32-char
// hex digest. Identical normalized inputs produce identical digests across
// processes and platforms.
//
// The hash covers (normalized title, normalized company, normalized URL).
// When the canonical URL is absent or points at a listing site, the search
// location substitutes for the URL so that the posting still deduplicates
// within one profile's corpus.
func Fingerprint(title, company, canonicalURL, location string) string {
	t := NormalizeTitle(title)
	c := normalizeText(company)

	var anchor string
	if canonicalURL != "" && !common.IsListingSiteURL(canonicalURL) && !common.IsSearchSelfLink(canonicalURL) {
		anchor = common.NormalizeURL(canonicalURL)
	} else {
		anchor = normalizeText(location)
	}

	sum := md5.Sum([]byte(t + "|" + c + "|" + anchor))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle lowercases, strips punctuation, collapses whitespace, and
// removes leading seniority markers.
func NormalizeTitle(title string) string {
	s := normalizeText(title)
	for {
		trimmed := false
		for _, prefix := range titleStopPrefixes {
			if s == prefix {
				return s
			}
			if strings.HasPrefix(s, prefix+" ") {
				s = strings.TrimSpace(s[len(prefix)+1:])
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}
	return s
}

// normalizeText lowercases, replaces punctuation with spaces, and collapses
// runs of whitespace into single spaces.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
