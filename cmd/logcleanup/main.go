// Command logcleanup deletes expired log records per the retention policy,
// optionally archiving them first. Run it from cron or by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/retention"
	"github.com/simorgh/advanced-logger/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		days       = flag.Int("days", 0, "days of logs to keep (overrides config)")
		level      = flag.String("level", "", "only clean up logs of this level")
		category   = flag.String("category", "", "only clean up logs of this category")
		dryRun     = flag.Bool("dry-run", false, "report what would be deleted without deleting")
		compress   = flag.Bool("compress", false, "archive logs before deletion")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	backend, err := storage.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage backend")
	}
	defer backend.Close()

	cleaner := retention.NewCleaner(cfg, backend, log)

	if *dryRun {
		log.Warn().Msg("DRY RUN MODE - no logs will be deleted")
	}

	report, err := cleaner.Run(context.Background(), retention.Options{
		Days:     *days,
		Level:    *level,
		Category: *category,
		DryRun:   *dryRun,
		Compress: *compress,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup failed")
	}

	log.Info().
		Int("days", report.Days).
		Time("cutoff", report.Cutoff).
		Int64("matched", report.Count).
		Msg("cleanup scan finished")

	for _, rec := range report.Sample {
		fmt.Printf("  %s  %-9s  %-12s  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Level, rec.Category, truncate(rec.Message, 50))
	}

	if report.DryRun {
		log.Info().Int64("would_delete", report.Count).Msg("dry run complete")
		return
	}

	for _, path := range report.Archives {
		log.Info().Str("archive", path).Msg("wrote archive")
	}
	log.Info().Int64("deleted", report.Deleted).Msg("cleanup complete")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
