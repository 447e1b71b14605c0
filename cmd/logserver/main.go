// Command logserver runs the log dashboard API standalone: storage, alerting,
// the HTTP surface and the retention scheduler wired together the same way a
// host application would embed them.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/alert"
	"github.com/simorgh/advanced-logger/api"
	"github.com/simorgh/advanced-logger/config"
	"github.com/simorgh/advanced-logger/logger"
	"github.com/simorgh/advanced-logger/retention"
	"github.com/simorgh/advanced-logger/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		port       = flag.Int("port", 8080, "listen port")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Caller().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	backend, err := storage.Open(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage backend")
	}
	defer backend.Close()

	alerts := alert.NewEngine(cfg.Alerts, backend, log)
	svc := logger.New(cfg, backend, alerts, log)
	cleaner := retention.NewCleaner(cfg, backend, log)

	scheduler, err := retention.NewScheduler(cleaner, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid retention schedule")
	}
	scheduler.Start()

	router := api.NewRouter(svc, cleaner)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
}
