package scraper

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// linkedinPageSize is the guest search results stride.
const linkedinPageSize = 25

// linkedinMaxPages caps pagination; the guest endpoint throttles hard past
// the first few pages.
const linkedinMaxPages = 4

// LinkedInAdapter scrapes the public (logged-out) LinkedIn job search.
type LinkedInAdapter struct {
	daysPosted int
}

func NewLinkedInAdapter(daysPosted int) *LinkedInAdapter {
	return &LinkedInAdapter{daysPosted: daysPosted}
}

func (a *LinkedInAdapter) Name() string       { return "linkedin" }
func (a *LinkedInAdapter) SearchHost() string { return "www.linkedin.com" }

func (a *LinkedInAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("keywords", keyword)
	if location != "" {
		q.Set("location", location)
	}
	if a.daysPosted > 0 {
		// f_TPR filters by seconds since posting.
		q.Set("f_TPR", fmt.Sprintf("r%d", a.daysPosted*86400))
	}
	if page > 1 {
		q.Set("start", fmt.Sprintf("%d", (page-1)*linkedinPageSize))
	}
	return "https://www.linkedin.com/jobs/search?" + q.Encode()
}

var linkedinCardSelectors = []string{
	"div.base-search-card",
	"li div.base-card",
	"ul.jobs-search__results-list li",
}

var linkedinEmptyMarkers = []string{
	"section.no-results",
	"div.jobs-search-no-results-banner",
}

func (a *LinkedInAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), linkedinCardSelectors, linkedinEmptyMarkers)
}

func (a *LinkedInAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "h3.base-search-card__title", "span.sr-only"),
		Company:    textFrom(sel, "h4.base-search-card__subtitle", "a.hidden-nested-link"),
		Location:   textFrom(sel, "span.job-search-card__location"),
		PostedText: textFrom(sel, "time.job-search-card__listdate", "time"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	card.Href, _ = hrefFrom(sel, "a.base-card__full-link", "a.base-search-card--link")
	card.LinkSelector = cardLinkSelector(sel, "a.base-card__full-link", "a.base-search-card--link")
	return card
}

func (a *LinkedInAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	if nextPage > linkedinMaxPages {
		return "", false
	}
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *LinkedInAdapter) WarmupURLs() []string { return nil }
