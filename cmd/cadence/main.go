// Package main implements the cadence daemon, which keeps recurring task
// definitions materialized into concrete tasks on a schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phrazzld/cadence/internal/config"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/redact"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options are the parsed command line flags.
type options struct {
	configPath string
	migrate    string
	once       bool
	exportICal string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the testable body of main. Log records go to stderr so stdout stays
// clean for exported calendars.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "cadence: %s\n", redact.Error(err))
		return exitError
	}

	log, err := logger.SetupWithWriter(cfg.Server, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "cadence: failed to set up logger: %v\n", err)
		return exitError
	}
	log.Info("configuration loaded",
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("scanner_enabled", cfg.Scanner.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, opts, log, stdout); err != nil {
		log.Error("cadence failed", slog.String("error", redact.Error(err)))
		return exitError
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("cadence", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to a config file (default: search for cadence.yaml)")
	fs.StringVar(&opts.migrate, "migrate", "", "run a migration command (up, down, status) and exit")
	fs.BoolVar(&opts.once, "once", false, "run a single scanner tick and exit")
	fs.StringVar(&opts.exportICal, "export-ical", "", "comma-separated definition ids to export as iCalendar")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "cadence: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return opts, fmt.Errorf("unexpected arguments")
	}
	return opts, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// execute runs the mode selected by opts.
func execute(ctx context.Context, cfg *config.Config, opts options, log *slog.Logger, stdout io.Writer) error {
	if opts.migrate != "" {
		return handleMigrations(ctx, cfg, opts.migrate, log)
	}

	db, err := setupDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	switch {
	case opts.exportICal != "":
		return app.exportICal(ctx, stdout, strings.Split(opts.exportICal, ","))
	case opts.once:
		_, err := app.runOnce(ctx)
		return err
	default:
		return app.Run(ctx)
	}
}
