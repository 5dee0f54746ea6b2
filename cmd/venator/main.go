package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
)

// Exit codes. The scheduler keys retry behavior off these.
const (
	exitOK           = 0
	exitUnknown      = 1
	exitInvalid      = 2
	exitNoProfile    = 3
	exitAdapterDrift = 4
	exitTransient    = 5
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: venator <command> [flags]

Commands:
  scrape    Crawl the profile's search matrix and upsert job records
  process   Run the two-stage evaluation pipeline over stored records
  stats     Print store counts by status and site
  purge     Delete all records for a profile
  version   Print version information

Run "venator <command> -h" for command flags.
`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitInvalid
	}

	command := args[0]
	switch command {
	case "version", "-version", "--version", "-v":
		fmt.Printf("Venator version %s\n", common.GetFullVersion())
		return exitOK
	case "help", "-h", "--help":
		usage()
		return exitOK
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var configFiles configPaths
	fs.Var(&configFiles, "config", "Configuration file path (repeatable, later files override earlier ones)")
	fs.Var(&configFiles, "c", "Configuration file path (shorthand)")
	profileName := fs.String("profile", "", "Profile name under the profile root (required)")

	var cmd subcommand
	switch command {
	case "scrape":
		cmd = newScrapeCommand(fs)
	case "process":
		cmd = newProcessCommand(fs)
	case "stats":
		cmd = newStatsCommand(fs)
	case "purge":
		cmd = newPurgeCommand(fs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		return exitInvalid
	}

	if err := fs.Parse(args[1:]); err != nil {
		return exitInvalid
	}
	if *profileName == "" {
		fmt.Fprintln(os.Stderr, "missing required -profile flag")
		return exitInvalid
	}

	// Auto-discover a config file next to the binary when none is given.
	if len(configFiles) == 0 {
		if _, err := os.Stat("venator.toml"); err == nil {
			configFiles = append(configFiles, "venator.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Failed to load configuration")
		return exitInvalid
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	ctx, cancel := signalContext(logger)
	defer cancel()

	return cmd.run(ctx, config, logger, *profileName)
}

// subcommand is one CLI operation. run returns the process exit code.
type subcommand interface {
	run(ctx context.Context, config *common.Config, logger arbor.ILogger, profile string) int
}

// signalContext cancels on the first SIGINT/SIGTERM so runs unwind
// cooperatively; a second signal kills the process.
func signalContext(logger arbor.ILogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("Interrupt received; finishing in-flight work")
		cancel()
		<-sigChan
		logger.Error().Msg("Second interrupt; exiting immediately")
		os.Exit(exitUnknown)
	}()

	return ctx, cancel
}

// exitCodeFor maps an error to the documented exit codes.
func exitCodeFor(err error) int {
	switch common.KindOf(err) {
	case common.KindInvalid:
		return exitInvalid
	case common.KindNotFound:
		return exitNoProfile
	case common.KindTransient:
		return exitTransient
	case common.KindCancelled:
		return exitOK
	default:
		return exitUnknown
	}
}
