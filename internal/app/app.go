package app

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
	"github.com/ternarybob/venator/internal/services/llm"
	"github.com/ternarybob/venator/internal/services/processor"
	"github.com/ternarybob/venator/internal/services/scraper"
	storage "github.com/ternarybob/venator/internal/storage/badger"
)

// App bundles one profile's wired services for a CLI invocation. Services
// are created lazily; a stats run never starts a browser.
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Profile *models.Profile
	Storage interfaces.StorageManager

	pool *scraper.BrowserPool
}

// New loads the profile and opens its store. The caller owns Close.
func New(config *common.Config, logger arbor.ILogger, profileName string) (*App, error) {
	profile, err := models.LoadProfile(config.ProfileRoot, profileName)
	if err != nil {
		return nil, err
	}

	manager, err := storage.OpenProfileStore(logger, profile.StoreDir(config.ProfileRoot), config.Storage.SyncWrites)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("profile", profile.String()).
		Str("store", profile.StoreDir(config.ProfileRoot)).
		Msg("Profile loaded")

	return &App{
		Config:  config,
		Logger:  logger,
		Profile: profile,
		Storage: manager,
	}, nil
}

// NewScraper starts the browser pool and wires the scrape pipeline. A
// non-empty site restricts the run to that adapter.
func (a *App) NewScraper(site string) (*scraper.Scraper, error) {
	adapters := scraper.NewAdapterRegistry(a.Config.Scraper)
	if site != "" {
		adapter, ok := scraper.AdapterByName(adapters, site)
		if !ok {
			return nil, common.Ef(common.KindInvalid, "app.new_scraper", "unknown site %q", site)
		}
		adapters = []interfaces.SiteAdapter{adapter}
	}

	pool, err := scraper.NewBrowserPool(a.Config.Pool, a.Logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	fetcher := scraper.NewFetcher(a.Config.Pool, a.Logger)
	resolver := scraper.NewResolver(a.Config.Scraper, a.Logger)

	return scraper.NewScraper(
		a.Config.Scraper,
		pool,
		fetcher,
		resolver,
		adapters,
		a.Storage.Jobs(),
		a.Storage.RunLog(),
		a.Logger,
	), nil
}

// NewProcessor wires the two-stage pipeline with the configured analyzer.
func (a *App) NewProcessor() (*processor.Processor, error) {
	factory := llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, a.Logger)

	analyzer, err := processor.NewAnalyzer(a.Config, factory, a.Storage.KV(), a.Logger)
	if err != nil {
		return nil, err
	}

	return processor.NewProcessor(
		a.Config.Processor,
		a.Storage.Jobs(),
		analyzer,
		a.Storage.RunLog(),
		a.Logger,
	), nil
}

// Close shuts the browser pool down first so every tab is gone before the
// store closes.
func (a *App) Close() error {
	if a.pool != nil {
		if err := a.pool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Browser pool shutdown failed")
		}
	}
	return a.Storage.Close()
}
