package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/app"
	"github.com/ternarybob/venator/internal/common"
)

type statsCommand struct {
	runs *int
}

func newStatsCommand(fs *flag.FlagSet) *statsCommand {
	return &statsCommand{
		runs: fs.Int("runs", 5, "Number of recent runs to list"),
	}
}

func (c *statsCommand) run(ctx context.Context, config *common.Config, logger arbor.ILogger, profile string) int {
	application, err := app.New(config, logger, profile)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitCodeFor(err)
	}
	defer application.Close()

	stats, err := application.Storage.Jobs().Stats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Stats query failed")
		return exitCodeFor(err)
	}

	fmt.Printf("profile %s: %d records (%d seen in last 24h)\n", profile, stats.Total, stats.Last24h)
	for status, n := range stats.ByStatus {
		fmt.Printf("  status %-14s %d\n", status, n)
	}
	for site, n := range stats.BySite {
		fmt.Printf("  site   %-14s %d\n", site, n)
	}

	if *c.runs > 0 {
		entries, err := application.Storage.RunLog().List(ctx, profile, *c.runs)
		if err != nil {
			logger.Warn().Err(err).Msg("Run log query failed")
			return exitOK
		}
		for _, entry := range entries {
			fmt.Printf("  run %s %s %s counters=%v\n",
				entry.Kind, entry.StartedAt.Format("2006-01-02 15:04:05"),
				entry.EndedAt.Sub(entry.StartedAt).Round(time.Millisecond), entry.Counters)
		}
	}
	return exitOK
}
