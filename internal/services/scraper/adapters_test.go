package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

func testScraperConfig() common.ScraperConfig {
	cfg := common.NewDefaultConfig().Scraper
	cfg.DaysPostedWindow = 14
	return cfg
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const elutaFixture = `<html><body>
<div class="search-results">
  <div class="organic-job">
    <a class="lapis-rank" href="#!">Senior Python Developer</a>
    <span class="employer">Acme Corp</span>
    <span class="location">Toronto, ON</span>
    <span class="salary">$110,000 - $130,000</span>
    <span class="posted-date">2 days ago</span>
    <div class="description">Build data pipelines in Python.</div>
  </div>
  <div class="organic-job">
    <a class="lapis-rank" href="https://jobs.globex.com/platform-eng">Platform Engineer</a>
    <span class="employer">Globex</span>
    <span class="location">Remote</span>
  </div>
  <div class="organic-job">
    <a class="lapis-rank" href="#!">Broken Card</a>
    <span class="location">Ottawa, ON</span>
  </div>
</div>
</body></html>`

func TestElutaAdapterExtraction(t *testing.T) {
	adapter := NewElutaAdapter(14)
	doc := docFrom(t, elutaFixture)

	cards, err := adapter.LocateJobCards(doc)
	require.NoError(t, err)
	require.Equal(t, 3, cards.Length())

	var extracted []*interfaces.JobCard
	cards.Each(func(_ int, sel *goquery.Selection) {
		extracted = append(extracted, adapter.ExtractCard(sel))
	})

	first := extracted[0]
	require.NotNil(t, first)
	assert.Equal(t, "Senior Python Developer", first.Title)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Toronto, ON", first.Location)
	assert.Equal(t, "$110,000 - $130,000", first.SalaryText)
	assert.Equal(t, "#!", first.Href)
	assert.NotEmpty(t, first.LinkSelector)

	second := extracted[1]
	require.NotNil(t, second)
	assert.Equal(t, "https://jobs.globex.com/platform-eng", second.Href)

	// Missing company: dropped.
	assert.Nil(t, extracted[2])
}

func TestElutaAdapterDriftDetection(t *testing.T) {
	adapter := NewElutaAdapter(14)

	// No cards and no empty marker: selectors rotted.
	doc := docFrom(t, `<html><body><div class="totally-new-layout"></div></body></html>`)
	_, err := adapter.LocateJobCards(doc)
	require.Error(t, err)
	assert.Equal(t, common.KindAdapterDrift, common.KindOf(err))

	// No cards but the empty marker present: legitimate zero results.
	doc = docFrom(t, `<html><body><div class="no-results">Nothing found</div></body></html>`)
	cards, err := adapter.LocateJobCards(doc)
	require.NoError(t, err)
	assert.Equal(t, 0, cards.Length())
}

const elutaPopupFixture = `<html><body>
<div class="search-results">
  <div class="organic-job">
    <a class="lapis-rank" href="#!">Senior Python Developer</a>
    <span class="employer">Acme Corp</span>
    <span class="location">Toronto, ON</span>
  </div>
  <div class="organic-job">
    <a class="lapis-rank" href="#!">Data Engineer</a>
    <span class="employer">Globex</span>
    <span class="location">Ottawa, ON</span>
  </div>
</div>
</body></html>`

func TestElutaClickSelectorsUniquePerCard(t *testing.T) {
	adapter := NewElutaAdapter(14)
	doc := docFrom(t, elutaPopupFixture)

	cards, err := adapter.LocateJobCards(doc)
	require.NoError(t, err)
	require.Equal(t, 2, cards.Length())

	first := adapter.ExtractCard(cards.Eq(0))
	second := adapter.ExtractCard(cards.Eq(1))
	require.NotNil(t, first)
	require.NotNil(t, second)

	// Both cards share the "#!" href; each selector must still address
	// its own card's link, or every click lands on the first card.
	require.NotEmpty(t, first.LinkSelector)
	assert.NotEqual(t, first.LinkSelector, second.LinkSelector)

	link1 := doc.Find(first.LinkSelector)
	require.Equal(t, 1, link1.Length())
	assert.Equal(t, "Senior Python Developer", cleanText(link1.Text()))

	link2 := doc.Find(second.LinkSelector)
	require.Equal(t, 1, link2.Length())
	assert.Equal(t, "Data Engineer", cleanText(link2.Text()))
}

func TestElutaSearchURLAndPagination(t *testing.T) {
	adapter := NewElutaAdapter(14)

	url := adapter.BuildSearchURL("python developer", "Toronto", 1)
	assert.Contains(t, url, "q=python+developer")
	assert.Contains(t, url, "l=Toronto")
	assert.Contains(t, url, "posted=14")
	assert.NotContains(t, url, "pg=")

	url2, ok := adapter.Paginate("python developer", "Toronto", 2)
	require.True(t, ok)
	assert.Contains(t, url2, "pg=2")

	_, ok = adapter.Paginate("python developer", "Toronto", 11)
	assert.False(t, ok)
}

const indeedFixture = `<html><body>
<div class="job_seen_beacon">
  <h2 class="jobTitle"><a class="jcs-JobTitle" href="/rc/clk?jk=abc123&url=https%3A%2F%2Fjobs.acme.com%2F42"><span>Data Engineer</span></a></h2>
  <span data-testid="company-name">Acme Corp</span>
  <div data-testid="text-location">Vancouver, BC</div>
  <div class="job-snippet">Pipelines and warehouses.</div>
</div>
</body></html>`

func TestIndeedAdapterExtraction(t *testing.T) {
	adapter := NewIndeedAdapter(14)
	doc := docFrom(t, indeedFixture)

	cards, err := adapter.LocateJobCards(doc)
	require.NoError(t, err)
	require.Equal(t, 1, cards.Length())

	card := adapter.ExtractCard(cards.First())
	require.NotNil(t, card)
	assert.Equal(t, "Data Engineer", card.Title)
	assert.Equal(t, "Acme Corp", card.Company)
	assert.Equal(t, "Vancouver, BC", card.Location)
	assert.Contains(t, card.Href, "/rc/clk")
}

func TestIndeedSearchURL(t *testing.T) {
	adapter := NewIndeedAdapter(7)

	url := adapter.BuildSearchURL("go developer", "Calgary", 3)
	assert.Contains(t, url, "ca.indeed.com/jobs")
	assert.Contains(t, url, "fromage=7")
	assert.Contains(t, url, "start=20")
}

func TestAdapterRegistry(t *testing.T) {
	cfg := testScraperConfig()
	adapters := NewAdapterRegistry(cfg)
	require.Len(t, adapters, 6)

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"eluta", "indeed", "linkedin", "monster", "jobbank", "towardsai"}, names)

	eluta, ok := AdapterByName(adapters, "eluta")
	require.True(t, ok)
	assert.Equal(t, "www.eluta.ca", eluta.SearchHost())

	_, ok = AdapterByName(adapters, "craigslist")
	assert.False(t, ok)
}

func TestMonsterWarmupConfigurable(t *testing.T) {
	off := NewMonsterAdapter(false)
	assert.Empty(t, off.WarmupURLs())

	on := NewMonsterAdapter(true)
	assert.NotEmpty(t, on.WarmupURLs())
}
