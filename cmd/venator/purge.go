package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/app"
	"github.com/ternarybob/venator/internal/common"
)

type purgeCommand struct {
	yes *bool
}

func newPurgeCommand(fs *flag.FlagSet) *purgeCommand {
	return &purgeCommand{
		yes: fs.Bool("yes", false, "Confirm deletion without prompting"),
	}
}

func (c *purgeCommand) run(ctx context.Context, config *common.Config, logger arbor.ILogger, profile string) int {
	if !*c.yes {
		fmt.Fprintf(os.Stderr, "purge deletes every record for profile %q; re-run with -yes to confirm\n", profile)
		return exitInvalid
	}

	application, err := app.New(config, logger, profile)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return exitCodeFor(err)
	}
	defer application.Close()

	deleted, err := application.Storage.Jobs().Purge(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Purge failed")
		return exitCodeFor(err)
	}

	fmt.Printf("purged %d records for profile %s\n", deleted, profile)
	return exitOK
}
