package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// JobBankAdapter scrapes jobbank.gc.ca, the Government of Canada job board.
// Markup is server-rendered and stable relative to the commercial boards.
type JobBankAdapter struct{}

func NewJobBankAdapter() *JobBankAdapter { return &JobBankAdapter{} }

func (a *JobBankAdapter) Name() string       { return "jobbank" }
func (a *JobBankAdapter) SearchHost() string { return "www.jobbank.gc.ca" }

func (a *JobBankAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("searchstring", keyword)
	if location != "" {
		q.Set("locationstring", location)
	}
	q.Set("sort", "D")
	if page > 1 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	return "https://www.jobbank.gc.ca/jobsearch/jobsearch?" + q.Encode()
}

var jobbankCardSelectors = []string{
	"article a.resultJobItem",
	"div.results-jobs article",
}

var jobbankEmptyMarkers = []string{
	"div.no-results-message",
	"span.found:contains('0')",
}

func (a *JobBankAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), jobbankCardSelectors, jobbankEmptyMarkers)
}

func (a *JobBankAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "span.noctitle", "h3.title"),
		Company:    textFrom(sel, "li.business"),
		Location:   textFrom(sel, "li.location"),
		SalaryText: textFrom(sel, "li.salary"),
		PostedText: textFrom(sel, "li.date"),
	}
	// The location node carries a screen-reader "Location" prefix.
	card.Location = strings.TrimSpace(strings.TrimPrefix(card.Location, "Location"))
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	if href, ok := sel.Attr("href"); ok {
		card.Href = strings.TrimSpace(href)
	} else {
		card.Href, _ = hrefFrom(sel, "a.resultJobItem")
	}
	card.LinkSelector = cardLinkSelector(sel, "a.resultJobItem")
	return card
}

func (a *JobBankAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *JobBankAdapter) WarmupURLs() []string { return nil }
