package scraper

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// indeedPageSize is Indeed's fixed results-per-page stride for the start
// offset parameter.
const indeedPageSize = 10

// IndeedAdapter scrapes ca.indeed.com. Card hrefs are /rc/clk redirect
// wrappers on the listing host; resolution unwraps or clicks through them.
type IndeedAdapter struct {
	daysPosted int
}

func NewIndeedAdapter(daysPosted int) *IndeedAdapter {
	return &IndeedAdapter{daysPosted: daysPosted}
}

func (a *IndeedAdapter) Name() string       { return "indeed" }
func (a *IndeedAdapter) SearchHost() string { return "ca.indeed.com" }

func (a *IndeedAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if location != "" {
		q.Set("l", location)
	}
	if a.daysPosted > 0 {
		q.Set("fromage", fmt.Sprintf("%d", a.daysPosted))
	}
	q.Set("sort", "date")
	if page > 1 {
		q.Set("start", fmt.Sprintf("%d", (page-1)*indeedPageSize))
	}
	return "https://ca.indeed.com/jobs?" + q.Encode()
}

var indeedCardSelectors = []string{
	"div.job_seen_beacon",
	"div.jobsearch-SerpJobCard",
	"td.resultContent",
}

var indeedEmptyMarkers = []string{
	"div.jobsearch-NoResult-messageContainer",
	"div[class*='no_results']",
}

func (a *IndeedAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), indeedCardSelectors, indeedEmptyMarkers)
}

func (a *IndeedAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "h2.jobTitle span", "a.jcs-JobTitle span", "h2.jobTitle"),
		Company:    textFrom(sel, "span[data-testid='company-name']", "span.companyName"),
		Location:   textFrom(sel, "div[data-testid='text-location']", "div.companyLocation"),
		SalaryText: textFrom(sel, "div.salary-snippet-container", "span.salaryText"),
		PostedText: textFrom(sel, "span[data-testid='myJobsStateDate']", "span.date"),
		Summary:    textFrom(sel, "div.job-snippet", "div[class*='underShelfFooter']"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	card.Href, _ = hrefFrom(sel, "a.jcs-JobTitle", "h2.jobTitle a", "a[data-jk]")
	card.LinkSelector = cardLinkSelector(sel, "a.jcs-JobTitle", "h2.jobTitle a", "a[data-jk]")
	return card
}

func (a *IndeedAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *IndeedAdapter) WarmupURLs() []string { return nil }
