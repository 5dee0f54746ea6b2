package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	storagebadger "github.com/ternarybob/venator/internal/storage/badger"
)

// fakeLease satisfies BrowserLease without a browser. The fake resolver and
// fetcher never touch the context.
type fakeLease struct {
	pool *fakePool
}

func (l *fakeLease) Context() context.Context { return context.Background() }
func (l *fakeLease) Release()                 { l.pool.record(func() { l.pool.released++ }) }
func (l *fakeLease) MarkBroken()              { l.pool.record(func() { l.pool.broken++ }) }

type fakePool struct {
	mu       sync.Mutex
	acquired int
	released int
	broken   int
}

func (p *fakePool) record(fn func()) {
	p.mu.Lock()
	fn()
	p.mu.Unlock()
}

func (p *fakePool) Acquire(ctx context.Context) (interfaces.BrowserLease, error) {
	p.record(func() { p.acquired++ })
	return &fakeLease{pool: p}, nil
}

func (p *fakePool) OpenTabCount() (int, error) { return 0, nil }
func (p *fakePool) Shutdown() error            { return nil }

// fakeFetcher serves canned HTML per URL. Unknown URLs render the empty
// marker so triples end cleanly.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, lease interfaces.BrowserLease, url string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		html = `<div class="empty"></div>`
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// fakeResolver maps hrefs to outcomes: external URLs resolve directly,
// "self" is a search self-link, "timeout" exceeds the click budget,
// "cancel" cancels the run mid-card, and an empty href resolves empty.
type fakeResolver struct {
	mu     sync.Mutex
	calls  int
	cancel context.CancelFunc
}

func (r *fakeResolver) Resolve(ctx context.Context, lease interfaces.BrowserLease, pageURL string, card *interfaces.JobCard, site interfaces.SiteAdapter) (interfaces.ResolveResult, error) {
	r.mu.Lock()
	r.calls++
	cancel := r.cancel
	r.mu.Unlock()

	switch {
	case card.Href == "self":
		return interfaces.ResolveResult{SelfLink: true}, nil
	case card.Href == "timeout":
		return interfaces.ResolveResult{TimedOut: true}, nil
	case card.Href == "cancel":
		if cancel != nil {
			cancel()
		}
		return interfaces.ResolveResult{}, nil
	case strings.HasPrefix(card.Href, "https://"):
		return interfaces.ResolveResult{URL: card.Href, Via: "href"}, nil
	}
	return interfaces.ResolveResult{}, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeAdapter struct {
	maxPages int
}

func (a *fakeAdapter) Name() string       { return "fake" }
func (a *fakeAdapter) SearchHost() string { return "fake.example.com" }

func (a *fakeAdapter) BuildSearchURL(keyword, location string, page int) string {
	return fmt.Sprintf("https://fake.example.com/search?q=%s&l=%s&pg=%d", keyword, location, page)
}

func (a *fakeAdapter) LocateJobCards(doc *goquery.Document) (*goquery.Selection, error) {
	return locateCards(doc, a.Name(), []string{"div.job"}, []string{"div.empty"})
}

func (a *fakeAdapter) ExtractCard(sel *goquery.Selection) *interfaces.JobCard {
	card := &interfaces.JobCard{
		Title:    textFrom(sel, "span.t"),
		Company:  textFrom(sel, "span.c"),
		Location: textFrom(sel, "span.l"),
	}
	if card.Title == "" || card.Company == "" || card.Location == "" {
		return nil
	}
	card.Href, _ = sel.Find("a").First().Attr("href")
	return card
}

func (a *fakeAdapter) Paginate(keyword, location string, nextPage int) (string, bool) {
	if nextPage > a.maxPages {
		return "", false
	}
	return a.BuildSearchURL(keyword, location, nextPage), true
}

func (a *fakeAdapter) WarmupURLs() []string { return nil }

func cardHTML(title, company, location, href string) string {
	return fmt.Sprintf(`<div class="job"><span class="t">%s</span><span class="c">%s</span><span class="l">%s</span><a href="%s">view</a></div>`,
		title, company, location, href)
}

type scrapeHarness struct {
	scraper  *Scraper
	manager  *storagebadger.Manager
	pool     *fakePool
	fetcher  *fakeFetcher
	resolver *fakeResolver
}

func newScrapeHarness(t *testing.T, pages map[string]string) *scrapeHarness {
	t.Helper()

	manager, err := storagebadger.OpenProfileStore(arbor.NewLogger(), t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	cfg := testScraperConfig()
	cfg.MaxConcurrentWorkers = 1
	cfg.MaxPagesPerKeyword = 2
	cfg.MaxJobsPerKeyword = 50
	cfg.RetryAttempts = 1
	cfg.PageDelayMin = time.Millisecond
	cfg.PageDelayMax = time.Millisecond

	pool := &fakePool{}
	fetcher := &fakeFetcher{pages: pages}
	resolver := &fakeResolver{}
	adapters := []interfaces.SiteAdapter{&fakeAdapter{maxPages: 2}}

	return &scrapeHarness{
		scraper:  NewScraper(cfg, pool, fetcher, resolver, adapters, manager.Jobs(), manager.RunLog(), arbor.NewLogger()),
		manager:  manager,
		pool:     pool,
		fetcher:  fetcher,
		resolver: resolver,
	}
}

func assertCounterIdentity(t *testing.T, s *models.ScrapeSummary) {
	t.Helper()
	assert.Equal(t, s.Seen, s.Inserted+s.Updated+s.Unchanged+s.DroppedCards,
		"counter identity violated: %s", s.String())
}

func testProfile(keywords, locations []string) *models.Profile {
	return &models.Profile{Name: "test", Keywords: keywords, Locations: locations}
}

func TestRunCountersAndIdempotentRescrape(t *testing.T) {
	page := cardHTML("Python Developer", "Acme", "Toronto, ON", "https://jobs.acme.com/1") +
		cardHTML("Data Engineer", "Globex", "Toronto, ON", "") +
		cardHTML("Broken Card", "", "Toronto, ON", "https://jobs.acme.com/3")
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": page,
	}

	h := newScrapeHarness(t, pages)
	ctx := context.Background()
	profile := testProfile([]string{"dev"}, []string{"Toronto"})

	summary, err := h.scraper.Run(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Seen)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.DroppedCards)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Unchanged)
	assert.False(t, summary.Cancelled)
	assertCounterIdentity(t, summary)

	// Lease accounting: every acquire released, none broken.
	assert.Equal(t, h.pool.acquired, h.pool.released)
	assert.Zero(t, h.pool.broken)

	// Identical second run: everything unchanged, nothing duplicated.
	summary2, err := h.scraper.Run(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, 3, summary2.Seen)
	assert.Zero(t, summary2.Inserted)
	assert.Equal(t, 2, summary2.Unchanged)
	assertCounterIdentity(t, summary2)

	records, err := h.manager.Jobs().Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunDuplicateAcrossKeywords(t *testing.T) {
	card := cardHTML("Python Developer", "Acme", "Toronto, ON", "https://jobs.acme.com/7")
	pages := map[string]string{
		"https://fake.example.com/search?q=python&l=Toronto&pg=1":    card,
		"https://fake.example.com/search?q=developer&l=Toronto&pg=1": card,
	}

	h := newScrapeHarness(t, pages)
	ctx := context.Background()

	summary, err := h.scraper.Run(ctx, testProfile([]string{"python", "developer"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Unchanged)
	assertCounterIdentity(t, summary)

	// Second sighting reused the in-run resolution cache.
	assert.Equal(t, 1, h.resolver.callCount())

	records, err := h.manager.Jobs().Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	// First keyword to discover the posting owns it.
	assert.Equal(t, "python", records[0].SearchKeyword)
}

func TestRunSelfLinkFallsBackToLocationIdentity(t *testing.T) {
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": cardHTML("Developer", "Acme", "Toronto, ON", "self"),
	}

	h := newScrapeHarness(t, pages)
	ctx := context.Background()

	summary, err := h.scraper.Run(ctx, testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SelfLinks)
	assert.Equal(t, 1, summary.Inserted)
	assertCounterIdentity(t, summary)

	records, err := h.manager.Jobs().Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].CanonicalURL)
	assert.NotEmpty(t, records[0].Fingerprint)
}

func TestRunResolveTimeoutCounted(t *testing.T) {
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": cardHTML("Developer", "Acme", "Toronto, ON", "timeout"),
	}

	h := newScrapeHarness(t, pages)

	summary, err := h.scraper.Run(context.Background(), testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ResolveTimeouts)
	// The record still lands, anchored by location.
	assert.Equal(t, 1, summary.Inserted)
	assertCounterIdentity(t, summary)
}

func TestRunAdapterDrift(t *testing.T) {
	pages := map[string]string{
		// Neither cards nor the empty marker: the selectors rotted.
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": `<div class="redesigned-layout"></div>`,
	}

	h := newScrapeHarness(t, pages)

	summary, err := h.scraper.Run(context.Background(), testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AdapterDrift["fake"])
	assert.True(t, summary.DriftOnAllSites())
	assert.Zero(t, summary.Seen)
}

func TestRunCancellationReturnsPartialSummary(t *testing.T) {
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": cardHTML("Developer", "Acme", "Toronto, ON", "https://jobs.acme.com/1"),
	}

	h := newScrapeHarness(t, pages)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.scraper.Run(ctx, testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Seen)
	assertCounterIdentity(t, summary)
	assert.Equal(t, h.pool.acquired, h.pool.released)
}

func TestRunCancelledMidCardKeepsCounterIdentity(t *testing.T) {
	page := cardHTML("Developer", "Acme", "Toronto, ON", "cancel") +
		cardHTML("Engineer", "Globex", "Toronto, ON", "https://jobs.globex.com/2")
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": page,
	}

	h := newScrapeHarness(t, pages)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.resolver.cancel = cancel

	summary, err := h.scraper.Run(ctx, testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)

	// The card that was mid-resolution when the run cancelled counts as
	// dropped; the second card is never seen.
	assert.Equal(t, 1, summary.Seen)
	assert.Equal(t, 1, summary.DroppedCards)
	assert.Zero(t, summary.Inserted)
	assertCounterIdentity(t, summary)
	assert.Equal(t, h.pool.acquired, h.pool.released)
}

func TestRunAppendsRunLog(t *testing.T) {
	pages := map[string]string{
		"https://fake.example.com/search?q=dev&l=Toronto&pg=1": cardHTML("Developer", "Acme", "Toronto, ON", "https://jobs.acme.com/1"),
	}

	h := newScrapeHarness(t, pages)
	ctx := context.Background()

	summary, err := h.scraper.Run(ctx, testProfile([]string{"dev"}, []string{"Toronto"}))
	require.NoError(t, err)

	entries, err := h.manager.RunLog().List(ctx, "test", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, summary.RunID, entries[0].ID)
	assert.Equal(t, models.RunKindScrape, entries[0].Kind)
	assert.Equal(t, summary.Seen, entries[0].Counters["seen"])
}
