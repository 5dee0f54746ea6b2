package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/app"
	"github.com/ternarybob/venator/internal/common"
)

type scrapeCommand struct {
	site *string
}

func newScrapeCommand(fs *flag.FlagSet) *scrapeCommand {
	return &scrapeCommand{
		site: fs.String("site", "", "Restrict the run to one site (eluta, indeed, linkedin, monster, jobbank, towardsai)"),
	}
}

func (c *scrapeCommand) run(ctx context.Context, config *common.Config, logger arbor.ILogger, profile string) int {
	application, err := app.New(config, logger, profile)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitCodeFor(err)
	}
	defer application.Close()

	scrape, err := application.NewScraper(*c.site)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start scraper")
		return exitCodeFor(err)
	}

	summary, err := scrape.Run(ctx, application.Profile)
	if err != nil {
		logger.Error().Err(err).Msg("Scrape run failed")
		return exitCodeFor(err)
	}

	fmt.Println(summary.String())

	// Drift everywhere, or drift anywhere with nothing inserted, means the
	// run produced no useful work.
	if summary.DriftOnAllSites() || (summary.Inserted == 0 && summary.DriftOnAnySite()) {
		return exitAdapterDrift
	}
	return exitOK
}
