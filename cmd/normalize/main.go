// Command normalize runs the record normalization pipeline over JSON record
// files and, optionally, one CSV table, and writes the batch result, error
// report and table report as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"recordnorm/internal/config"
	"recordnorm/internal/logger"
	"recordnorm/internal/metrics"
	"recordnorm/internal/metrics/datadog"
	"recordnorm/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "recordnorm/internal/storage/all"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fatalf("%v", err)
	}

	cfg, issues, err := config.Load(opts.configPath)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if err != nil {
		fatalf("load config: %v", err)
	}

	level := cfg.Logging.Level
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.Logging.Env, level)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	flush := setupMetrics(log, cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	start := time.Now()
	log.Info("normalize starting",
		zap.String("job", cfg.Job),
		zap.Strings("records", opts.records),
		zap.String("table", opts.table),
		zap.String("storage", cfg.Storage.Kind),
	)
	if err := run(ctx, cfg, opts); err != nil {
		log.Error("normalize failed", zap.Error(err))
		flush()
		os.Exit(1)
	}
	log.Info("normalize completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
}

// setupMetrics installs the configured backend and returns the flush hook.
// A backend that cannot be built leaves metrics disabled.
func setupMetrics(log *zap.Logger, cfg config.Config) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(cfg.Metrics.Backend) {
	case "prometheus":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  cfg.Metrics.Namespace,
			GlobalTags: cfg.Metrics.Tags,
		})
	default:
		log.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; using nop", zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}
	metrics.SetBackend(b)
	log.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend), zap.String("job", cfg.Job))

	flushed := false
	return func() {
		if flushed {
			return
		}
		flushed = true
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
