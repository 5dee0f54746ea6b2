package scraper

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// elutaMaxPages is the deepest page Eluta serves before results repeat.
const elutaMaxPages = 10

// ElutaAdapter scrapes eluta.ca. Eluta cards link through "#!" pseudo-hrefs
// that open employer popups, so most resolutions go through the click path.
type ElutaAdapter struct {
	daysPosted int
}

func NewElutaAdapter(daysPosted int) *ElutaAdapter {
	return &ElutaAdapter{daysPosted: daysPosted}
}

func (a *ElutaAdapter) Name() string       { return "eluta" }
func (a *ElutaAdapter) SearchHost() string { return "www.eluta.ca" }

func (a *ElutaAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if location != "" {
		q.Set("l", location)
	}
	if a.daysPosted > 0 {
		q.Set("posted", fmt.Sprintf("%d", a.daysPosted))
	}
	if page > 1 {
		q.Set("pg", fmt.Sprintf("%d", page))
	}
	return "https://www.eluta.ca/search?" + q.Encode()
}

var elutaCardSelectors = []string{
	"div.organic-job",
	"div.lister div.job",
	"div.search-results div[itemtype$='JobPosting']",
}

var elutaEmptyMarkers = []string{
	"div.no-results",
	"p.zero-results",
}

func (a *ElutaAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), elutaCardSelectors, elutaEmptyMarkers)
}

func (a *ElutaAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "a.lapis-rank", "h2 a", "span.job-title"),
		Company:    textFrom(sel, "span.employer", "div.employer-name"),
		Location:   textFrom(sel, "span.location", "div.job-location"),
		SalaryText: textFrom(sel, "span.salary"),
		PostedText: textFrom(sel, "span.posted-date", "time"),
		Summary:    textFrom(sel, "div.description", "span.snippet"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	card.Href, _ = hrefFrom(sel, "a.lapis-rank", "h2 a")
	card.LinkSelector = cardLinkSelector(sel, "a.lapis-rank", "h2 a")
	return card
}

func (a *ElutaAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	if nextPage > elutaMaxPages {
		return "", false
	}
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *ElutaAdapter) WarmupURLs() []string { return nil }
