package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// workItem is one (site, keyword, location) triple. The queue is built in
// deterministic order so runs are reproducible given identical pages.
type workItem struct {
	site     interfaces.SiteAdapter
	keyword  string
	location string
}

// Scraper fans the profile's search matrix out across a bounded worker set.
// Each worker holds at most one browser lease at a time and walks its
// triple's pages sequentially.
type Scraper struct {
	cfg      common.ScraperConfig
	pool     interfaces.BrowserPool
	fetcher  interfaces.PageFetcher
	resolver interfaces.URLResolver
	adapters []interfaces.SiteAdapter
	jobs     interfaces.JobStore
	runlog   interfaces.RunLogStore
	logger   arbor.ILogger

	pacer *Pacer
	retry *RetryPolicy
}

// NewScraper wires the scrape pipeline. runlog may be nil in tests.
func NewScraper(
	cfg common.ScraperConfig,
	pool interfaces.BrowserPool,
	fetcher interfaces.PageFetcher,
	resolver interfaces.URLResolver,
	adapters []interfaces.SiteAdapter,
	jobs interfaces.JobStore,
	runlog interfaces.RunLogStore,
	logger arbor.ILogger,
) *Scraper {
	return &Scraper{
		cfg:      cfg,
		pool:     pool,
		fetcher:  fetcher,
		resolver: resolver,
		adapters: adapters,
		jobs:     jobs,
		runlog:   runlog,
		logger:   logger,
		pacer:    NewPacer(cfg),
		retry:    NewRetryPolicy(cfg.RetryAttempts, logger),
	}
}

// runState accumulates counters across workers. All mutation goes through
// the mutex; the summary is read only after every worker has returned.
type runState struct {
	mu      sync.Mutex
	summary *models.ScrapeSummary

	// resolved caches in-run resolutions keyed by normalized (title,
	// company) so the same posting under a second keyword skips the click.
	resolved map[string]string
}

func (s *runState) count(fn func(*models.ScrapeSummary)) {
	s.mu.Lock()
	fn(s.summary)
	s.mu.Unlock()
}

func (s *runState) cachedURL(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.resolved[key]
	return u, ok
}

func (s *runState) cacheURL(key, url string) {
	s.mu.Lock()
	s.resolved[key] = url
	s.mu.Unlock()
}

// Run executes one scrape for the profile and returns the summary. A
// cancelled context stops dispatching, lets in-flight pages finish, and
// returns a partial summary with Cancelled set.
func (s *Scraper) Run(ctx context.Context, profile *models.Profile) (*models.ScrapeSummary, error) {
	start := time.Now()
	runID := common.NewRunID()

	siteNames := make([]string, 0, len(s.adapters))
	for _, a := range s.adapters {
		siteNames = append(siteNames, a.Name())
	}

	state := &runState{
		summary: &models.ScrapeSummary{
			RunID:             runID,
			Profile:           profile.Name,
			Sites:             siteNames,
			TransientFailures: make(map[string]int),
			AdapterDrift:      make(map[string]int),
		},
		resolved: make(map[string]string),
	}

	queue := s.buildQueue(profile)
	s.logger.Info().
		Str("run_id", runID).
		Str("profile", profile.Name).
		Int("triples", len(queue)).
		Int("workers", s.cfg.MaxConcurrentWorkers).
		Msg("Scrape run starting")

	items := make(chan workItem)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.MaxConcurrentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				s.runTriple(ctx, item, state)
			}
		}()
	}

dispatch:
	for _, item := range queue {
		select {
		case items <- item:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(items)
	wg.Wait()

	summary := state.summary
	summary.Cancelled = ctx.Err() != nil
	summary.Duration = time.Since(start)

	s.appendRunLog(profile.Name, summary, start)
	s.logger.Info().Str("run_id", runID).Msg(summary.String())
	return summary, nil
}

// buildQueue expands the profile into (site, keyword, location) triples.
func (s *Scraper) buildQueue(profile *models.Profile) []workItem {
	locations := profile.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}
	var queue []workItem
	for _, site := range s.adapters {
		for _, keyword := range profile.Keywords {
			for _, location := range locations {
				queue = append(queue, workItem{site: site, keyword: keyword, location: location})
			}
		}
	}
	return queue
}

// runTriple walks one triple's pages under a single lease.
func (s *Scraper) runTriple(ctx context.Context, item workItem, state *runState) {
	if ctx.Err() != nil {
		return
	}

	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		if common.KindOf(err) != common.KindCancelled {
			state.count(func(sum *models.ScrapeSummary) { sum.TransientFailures[item.site.Name()]++ })
			s.logger.Warn().Err(err).Str("site", item.site.Name()).Msg("No browser lease for triple")
		}
		return
	}
	defer lease.Release()

	s.warmup(ctx, lease, item.site)

	jobsThisTriple := 0
	for page := 1; page <= s.cfg.MaxPagesPerKeyword; page++ {
		if ctx.Err() != nil || jobsThisTriple >= s.cfg.MaxJobsPerKeyword {
			return
		}

		pageURL, ok := s.pageURL(item, page)
		if !ok {
			return
		}

		if err := s.pacer.Wait(ctx); err != nil {
			return
		}

		doc, err := s.fetchPage(ctx, lease, item.site, pageURL)
		if err != nil {
			switch common.KindOf(err) {
			case common.KindCancelled:
				return
			case common.KindAdapterDrift:
				state.count(func(sum *models.ScrapeSummary) { sum.AdapterDrift[item.site.Name()]++ })
				s.logger.Error().Err(err).Str("site", item.site.Name()).Msg("Adapter drift; abandoning triple")
				return
			default:
				state.count(func(sum *models.ScrapeSummary) { sum.TransientFailures[item.site.Name()]++ })
				continue
			}
		}

		cards, err := item.site.LocateJobCards(doc)
		if err != nil {
			state.count(func(sum *models.ScrapeSummary) { sum.AdapterDrift[item.site.Name()]++ })
			s.logger.Error().Err(err).Str("site", item.site.Name()).Str("url", pageURL).Msg("Adapter drift; abandoning triple")
			return
		}
		if cards == nil || cards.Length() == 0 {
			return
		}

		n := s.processCards(ctx, lease, item, pageURL, cards, state, &jobsThisTriple)
		if n == 0 || ctx.Err() != nil {
			return
		}
	}
}

// pageURL returns the URL for a triple's page, honoring the site's cap.
func (s *Scraper) pageURL(item workItem, page int) (string, bool) {
	if page == 1 {
		return item.site.BuildSearchURL(item.keyword, item.location, 1), true
	}
	return item.site.Paginate(item.keyword, item.location, page)
}

// fetchPage fetches one listing page with retries on transient failures.
func (s *Scraper) fetchPage(ctx context.Context, lease interfaces.BrowserLease, site interfaces.SiteAdapter, url string) (doc *goquery.Document, err error) {
	err = s.retry.Do(ctx, "scraper.fetch_page", func() error {
		var fetchErr error
		doc, fetchErr = s.fetcher.Fetch(ctx, lease, url)
		return fetchErr
	})
	return doc, err
}

// processCards extracts, resolves, and upserts every card on a page.
// Returns the number of cards handled.
func (s *Scraper) processCards(ctx context.Context, lease interfaces.BrowserLease, item workItem, pageURL string, cards *goquery.Selection, state *runState, jobsThisTriple *int) int {
	handled := 0
	now := time.Now().UTC()

	cards.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if ctx.Err() != nil || *jobsThisTriple >= s.cfg.MaxJobsPerKeyword {
			return false
		}
		handled++
		*jobsThisTriple++
		state.count(func(sum *models.ScrapeSummary) { sum.Seen++ })

		card := item.site.ExtractCard(sel)
		if card == nil {
			state.count(func(sum *models.ScrapeSummary) { sum.DroppedCards++ })
			return true
		}

		canonicalURL := s.resolveCard(ctx, lease, item, pageURL, card, state)
		if ctx.Err() != nil {
			// Cancelled before an upsert outcome: the card still counts as
			// dropped so seen == inserted+updated+unchanged+dropped holds
			// on partial summaries.
			state.count(func(sum *models.ScrapeSummary) { sum.DroppedCards++ })
			return false
		}

		record := s.buildRecord(card, item, canonicalURL, now)
		result, err := s.jobs.Upsert(ctx, record)
		if err != nil {
			switch common.KindOf(err) {
			case common.KindInvalid:
				state.count(func(sum *models.ScrapeSummary) { sum.DroppedCards++ })
				s.logger.Debug().Err(err).Str("title", card.Title).Msg("Dropped invalid record")
				return true
			case common.KindCancelled:
				state.count(func(sum *models.ScrapeSummary) { sum.DroppedCards++ })
				return false
			default:
				state.count(func(sum *models.ScrapeSummary) {
					sum.TransientFailures[item.site.Name()]++
					sum.DroppedCards++
				})
				s.logger.Warn().Err(err).Str("title", card.Title).Msg("Upsert failed")
				return true
			}
		}

		state.count(func(sum *models.ScrapeSummary) {
			switch result {
			case models.UpsertInserted:
				sum.Inserted++
			case models.UpsertUpdated:
				sum.Updated++
			default:
				sum.Unchanged++
			}
		})
		return true
	})
	return handled
}

// resolveCard resolves the canonical URL for one card, reusing the in-run
// cache when the posting already resolved under another keyword.
func (s *Scraper) resolveCard(ctx context.Context, lease interfaces.BrowserLease, item workItem, pageURL string, card *interfaces.JobCard, state *runState) string {
	cacheKey := models.NormalizeTitle(card.Title) + "|" + models.NormalizeTitle(card.Company)
	if cached, ok := state.cachedURL(cacheKey); ok {
		return cached
	}

	res, err := s.resolver.Resolve(ctx, lease, pageURL, card, item.site)
	if err != nil {
		if common.KindOf(err) != common.KindCancelled {
			state.count(func(sum *models.ScrapeSummary) {
				sum.ResolveEmpty++
				sum.TransientFailures[item.site.Name()]++
			})
		}
		return ""
	}

	switch {
	case res.URL != "":
		state.cacheURL(cacheKey, res.URL)
		return res.URL
	case res.SelfLink:
		state.count(func(sum *models.ScrapeSummary) { sum.SelfLinks++ })
	case res.TimedOut:
		state.count(func(sum *models.ScrapeSummary) { sum.ResolveTimeouts++ })
	default:
		state.count(func(sum *models.ScrapeSummary) { sum.ResolveEmpty++ })
	}
	return ""
}

// buildRecord assembles the JobRecord from one extracted, resolved card.
func (s *Scraper) buildRecord(card *interfaces.JobCard, item workItem, canonicalURL string, now time.Time) *models.JobRecord {
	return &models.JobRecord{
		Fingerprint:    models.Fingerprint(card.Title, card.Company, canonicalURL, card.Location),
		Title:          card.Title,
		Company:        card.Company,
		Location:       card.Location,
		CanonicalURL:   canonicalURL,
		SourceSite:     item.site.Name(),
		SearchKeyword:  item.keyword,
		SearchLocation: item.location,
		ScrapedAt:      now,
		LastSeenAt:     now,
		SalaryText:     card.SalaryText,
		PostedText:     card.PostedText,
		Summary:        card.Summary,
		Description:    DescriptionMarkdown(card.DescriptionHTML),
		ATSSystem:      models.DetectATS(canonicalURL),
		Status:         models.StatusScraped,
		SchemaVersion:  models.CurrentSchemaVersion,
	}
}

// warmup runs the site's optional neutral navigations before the first
// search page.
func (s *Scraper) warmup(ctx context.Context, lease interfaces.BrowserLease, site interfaces.SiteAdapter) {
	for _, url := range site.WarmupURLs() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.fetcher.Fetch(ctx, lease, url); err != nil {
			s.logger.Debug().Err(err).Str("site", site.Name()).Str("url", url).Msg("Warmup navigation failed")
		}
	}
}

// appendRunLog persists the run outcome, best effort.
func (s *Scraper) appendRunLog(profile string, summary *models.ScrapeSummary, start time.Time) {
	if s.runlog == nil {
		return
	}
	entry := &models.RunLogEntry{
		ID:        summary.RunID,
		Profile:   profile,
		Kind:      models.RunKindScrape,
		StartedAt: start,
		EndedAt:   time.Now().UTC(),
		Cancelled: summary.Cancelled,
		Counters: map[string]int{
			"seen":      summary.Seen,
			"inserted":  summary.Inserted,
			"updated":   summary.Updated,
			"unchanged": summary.Unchanged,
			"dropped":   summary.DroppedCards,
		},
	}
	if err := s.runlog.Append(context.Background(), entry); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to append run log entry")
	}
}
