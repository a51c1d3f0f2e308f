// Command migrate manages the bookmark store schema.
//
//	migrate -up | -down | -steps N | -version | -force V  [-path DIR] [-config FILE]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/config"
	"github.com/helixir/paper-feed-service/internal/database"
	"github.com/helixir/paper-feed-service/internal/observability"
)

const migrateTimeout = 2 * time.Minute

var errNoAction = errors.New("no action specified")

type actionKind int

const (
	actionUp actionKind = iota + 1
	actionDown
	actionSteps
	actionVersion
	actionForce
)

type action struct {
	kind actionKind
	n    int // steps for actionSteps, version for actionForce
}

type options struct {
	action     action
	path       string
	configFile string
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.path == "" {
		opts.path = cfg.Database.MigrationPath
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	}).With().Str("component", "migrate").Str("path", opts.path).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	return apply(ctx, db, opts, logger)
}

// parseArgs requires exactly one of -up, -down, -steps, -version, -force.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	up := fs.Bool("up", false, "apply all pending migrations")
	down := fs.Bool("down", false, "roll back all migrations")
	steps := fs.Int("steps", 0, "apply N migrations, negative rolls back")
	version := fs.Bool("version", false, "print the applied schema version")
	force := fs.Int("force", -1, "record version V as applied and clear the dirty flag")

	var opts options
	fs.StringVar(&opts.path, "path", "", "migrations directory (default: database.migration_path)")
	fs.StringVar(&opts.configFile, "config", "", "config file (default: search the standard locations)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var chosen []action
	if *up {
		chosen = append(chosen, action{kind: actionUp})
	}
	if *down {
		chosen = append(chosen, action{kind: actionDown})
	}
	if *steps != 0 {
		chosen = append(chosen, action{kind: actionSteps, n: *steps})
	}
	if *version {
		chosen = append(chosen, action{kind: actionVersion})
	}
	if *force >= 0 {
		chosen = append(chosen, action{kind: actionForce, n: *force})
	}

	switch len(chosen) {
	case 0:
		fs.Usage()
		return options{}, errNoAction
	case 1:
		opts.action = chosen[0]
		return opts, nil
	default:
		return options{}, fmt.Errorf("specify only one action at a time")
	}
}

func apply(ctx context.Context, db *database.DB, opts options, logger zerolog.Logger) error {
	// -up shares MigrationLockKey with servers that migrate on boot.
	if opts.action.kind == actionUp {
		if err := database.MigrateUp(ctx, db, opts.path, logger); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	m, err := database.NewMigrator(db, opts.path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()

	switch opts.action.kind {
	case actionDown:
		err = m.Down()
	case actionSteps:
		err = m.Steps(opts.action.n)
	case actionForce:
		err = m.Force(opts.action.n)
	}
	if err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return nil
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current migration version")
	return nil
}
