package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/galaxy/bootstrap"
	"github.com/aschepis/backscratcher/galaxy/config"
	galaxylogger "github.com/aschepis/backscratcher/galaxy/logger"
	"github.com/aschepis/backscratcher/galaxy/metrics"
)

const usage = `Usage: galaxy [global flags] <command> [flags]

Commands:
  chat   send a prompt (or a batch of prompts) to a provider
  wc     count lines of every file in a directory

Global flags:
`

// app carries what every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envName     = flag.String("env", "", "dotenv file to load (.env when empty, otherwise .env.<name>)")
		configPath  = flag.String("config", config.GetConfigPath(), "Path to YAML config file")
		pretty      = flag.Bool("pretty", false, "Use pretty console output")
		noFiles     = flag.Bool("no-log-files", false, "Log to the console only")
		dumpMetrics = flag.Bool("metrics", false, "Log collected metrics before exiting")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// A missing default .env is fine; a named one is not.
	envPath, envErr := bootstrap.InitializeEnvironment(*envName)
	if envErr != nil && (*envName != "" || !errors.Is(envErr, fs.ErrNotExist)) {
		return fmt.Errorf("failed to initialize environment: %w", envErr)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := galaxylogger.Init(galaxylogger.Options{
		Dir:          cfg.Log.Dir,
		ConsoleLevel: galaxylogger.ParseLevel(cfg.Log.Level),
		Pretty:       *pretty || cfg.Log.Pretty,
		Console:      os.Stderr,
		DisableFiles: *noFiles,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer galaxylogger.Close() //nolint:errcheck // No remedy for log close errors

	if envErr == nil {
		logger.Info().Str("path", envPath).Msg("Loaded environment file")
	}
	logger.Info().
		Str("config", *configPath).
		Str("env", cfg.Env).
		Str("project", cfg.ProjectName).
		Msg("galaxy starting")

	registry := prometheus.NewRegistry()
	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(registry),
		registry: registry,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("a command is required")
	}

	switch args[0] {
	case "chat":
		err = a.runChat(ctx, args[1:])
	case "wc":
		err = a.runWordCount(ctx, args[1:])
	default:
		flag.Usage()
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if *dumpMetrics {
		a.logMetrics()
	}
	return err
}

// logMetrics writes one log line per collected series.
func (a *app) logMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			event := a.logger.Info().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				event = event.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				event = event.Float64("value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				event = event.
					Uint64("count", m.GetHistogram().GetSampleCount()).
					Float64("sum", m.GetHistogram().GetSampleSum())
			}
			event.Msg("Metric")
		}
	}
}
