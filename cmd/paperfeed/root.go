package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-feed-service/internal/app"
	"github.com/helixir/paper-feed-service/internal/config"
	"github.com/helixir/paper-feed-service/internal/observability"
)

// cli holds the state shared by every subcommand.
type cli struct {
	out io.Writer

	cfgFile    string
	source     string
	jsonOutput bool
	verbose    bool
	timeout    time.Duration

	services *app.Services
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "paperfeed",
		Short: "Browse the alphaXiv paper feed",
		Long: `paperfeed reads the alphaXiv paper feed through the configured source
strategy and manages local bookmarks.

Example usage:
  paperfeed feed --sort Likes          # Most liked papers
  paperfeed search diffusion models    # Search papers
  paperfeed details 2601.20802         # Show one paper
  paperfeed overview 2601.20802 --lang de
  paperfeed bookmarks toggle 2601.20802
  paperfeed pdf 2601.20802 -o sdpo.pdf
  paperfeed --source mock feed --json  # Sample data as JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: search ./config.yaml, ./config, /etc/paper-feed-service)")
	flags.StringVar(&c.source, "source", "", "source strategy override (mock, api, scraper)")
	flags.BoolVar(&c.jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log source activity to stderr")
	flags.DurationVar(&c.timeout, "timeout", time.Minute, "overall deadline for the command")

	root.AddCommand(
		c.newFeedCmd(),
		c.newSearchCmd(),
		c.newDetailsCmd(),
		c.newOverviewCmd(),
		c.newBookmarksCmd(),
		c.newLanguageCmd(),
		c.newPDFCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.LoadFile(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.source != "" {
		cfg.PaperSources.Active = strings.ToLower(c.source)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	}).With().Str("component", "paperfeed").Logger()

	if ctx == nil {
		ctx = context.Background()
	}
	services, err := app.Build(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *cli) teardown() error {
	if c.services == nil {
		return nil
	}
	err := c.services.Close()
	c.services = nil
	return err
}

// context returns a context bounded by the --timeout flag.
func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *cli) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}
