package scraper

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/venator/internal/interfaces"
)

// MonsterAdapter scrapes monster.ca. Monster occasionally serves an
// interstitial to cold browser contexts; the optional warm-up navigation
// works around it at the cost of one extra page load per context.
type MonsterAdapter struct {
	warmup bool
}

func NewMonsterAdapter(warmup bool) *MonsterAdapter {
	return &MonsterAdapter{warmup: warmup}
}

func (a *MonsterAdapter) Name() string       { return "monster" }
func (a *MonsterAdapter) SearchHost() string { return "www.monster.ca" }

func (a *MonsterAdapter) BuildSearchURL(keyword, location string, page int) string {
	q := url.Values{}
	q.Set("q", keyword)
	if location != "" {
		q.Set("where", location)
	}
	if page > 1 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	return "https://www.monster.ca/jobs/search?" + q.Encode()
}

var monsterCardSelectors = []string{
	"article[data-testid='svx_jobCard']",
	"div[data-testid='JobCard']",
	"section.card-content",
}

var monsterEmptyMarkers = []string{
	"div[data-testid='noResults']",
	"h2.no-results-title",
}

func (a *MonsterAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), monsterCardSelectors, monsterEmptyMarkers)
}

func (a *MonsterAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:      textFrom(sel, "a[data-testid='jobTitle']", "h2.title a", "h3[data-testid='jobTitle']"),
		Company:    textFrom(sel, "span[data-testid='company']", "div.company"),
		Location:   textFrom(sel, "span[data-testid='jobDetailLocation']", "div.location"),
		PostedText: textFrom(sel, "span[data-testid='jobDetailDateRecency']", "time"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	card.Href, _ = hrefFrom(sel, "a[data-testid='jobTitle']", "h2.title a")
	card.LinkSelector = cardLinkSelector(sel, "a[data-testid='jobTitle']", "h2.title a")
	return card
}

func (a *MonsterAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	return a.BuildSearchURL(keyword, location, nextPage), true
}

// WarmupURLs returns the homepage when warm-up is enabled so the context
// picks up Monster's cookies before the first search.
func (a *MonsterAdapter) WarmupURLs() []string {
	if !a.warmup {
		return nil
	}
	return []string{"https://www.monster.ca"}
}
