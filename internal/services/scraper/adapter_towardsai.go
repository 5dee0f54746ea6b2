package scraper

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// TowardsAIAdapter scrapes the Towards AI job board. The board is small;
// keyword filtering happens client-side, so cards often carry inline
// description fragments worth keeping.
type TowardsAIAdapter struct{}

func NewTowardsAIAdapter() *TowardsAIAdapter { return &TowardsAIAdapter{} }

func (a *TowardsAIAdapter) Name() string       { return "towardsai" }
func (a *TowardsAIAdapter) SearchHost() string { return "jobs.towardsai.net" }

func (a *TowardsAIAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if location != "" {
		q.Set("location", location)
	}
	if page > 1 {
		q.Set("pg", fmt.Sprintf("%d", page))
	}
	return "https://jobs.towardsai.net/search?" + q.Encode()
}

var towardsaiCardSelectors = []string{
	"div.job-card",
	"li[data-job-id]",
	"div.jobs-list article",
}

var towardsaiEmptyMarkers = []string{
	"div.empty-state",
	"p.no-jobs",
}

func (a *TowardsAIAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), towardsaiCardSelectors, towardsaiEmptyMarkers)
}

func (a *TowardsAIAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "h3.job-title", "h2 a"),
		Company:    textFrom(sel, "span.company-name", "div.company"),
		Location:   textFrom(sel, "span.job-location", "div.location"),
		SalaryText: textFrom(sel, "span.salary-range"),
		PostedText: textFrom(sel, "time", "span.posted"),
		Summary:    textFrom(sel, "p.job-summary"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	if desc, err := sel.Find("div.job-description").Html(); err == nil {
		card.DescriptionHTML = desc
	}
	card.Href, _ = hrefFrom(sel, "h3.job-title a", "h2 a", "a.apply-link")
	card.LinkSelector = cardLinkSelector(sel, "h3.job-title a", "h2 a", "a.apply-link")
	return card
}

func (a *TowardsAIAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *TowardsAIAdapter) WarmupURLs() []string { return nil }
