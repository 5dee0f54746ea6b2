package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/app"
	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/services/processor"
)

type processCommand struct {
	stage2Only *bool
	analyzer   *string
}

func newProcessCommand(fs *flag.FlagSet) *processCommand {
	return &processCommand{
		stage2Only: fs.Bool("stage2-only", false, "Skip stage1 and process records already at stage1_scored"),
		analyzer:   fs.String("analyzer", "", "Override the configured analyzer (heuristic, llm, embedding)"),
	}
}

func (c *processCommand) run(ctx context.Context, config *common.Config, logger arbor.ILogger, profile string) int {
	if *c.analyzer != "" {
		config.Processor.Analyzer = *c.analyzer
	}

	application, err := app.New(config, logger, profile)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitCodeFor(err)
	}
	defer application.Close()

	proc, err := application.NewProcessor()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build processor")
		return exitCodeFor(err)
	}

	summary, err := proc.Run(ctx, application.Profile, processor.Options{Stage2Only: *c.stage2Only})
	if err != nil {
		logger.Error().Err(err).Msg("Processing run failed")
		return exitCodeFor(err)
	}

	fmt.Println(summary.String())
	return exitOK
}
