package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-insights/internal/api"
	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
)

const (
	// maxUploadBytes bounds one multipart ingest request.
	maxUploadBytes = 64 << 20
	// jobQueueSize is how many async uploads may wait before ?async=true
	// requests block.
	jobQueueSize = 100
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("STATEMENTS_CONFIG"), "config file (optional, or set STATEMENTS_CONFIG)")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log, err := logger.NewFromConfig(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log = logger.New()
		log.Warn().Err(err).Msg("Invalid log settings, using defaults")
	}

	ctx := logger.WithContext(context.Background(), log)

	backend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage backend")
	}
	defer backend.Close()

	if err := backend.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare storage schema")
	}

	services, err := app.NewServices(ctx, cfg, backend, app.IngestOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}
	defer services.Close()

	if cfg.UserID != "" {
		log.Warn().Str("user_id", cfg.UserID).Msg("Requests without " + middleware.UserIDHeader + " are served as the default user")
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(jobQueueSize, jobStore)
	if err := queue.Start(ctx, services.Ingest.Ingest); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingestion worker")
	}

	handler := api.NewRouter(api.Deps{
		Ingest:        handlers.NewIngestHandler(services.Ingest, maxUploadBytes).WithPublisher(queue),
		Transactions:  handlers.NewTransactionsHandler(backend, services.Extractor),
		Documents:     handlers.NewDocumentsHandler(backend, backend),
		Jobs:          handlers.NewJobsHandler(jobStore),
		DefaultUserID: cfg.UserID,
	}, log)

	// Extraction of a multi-page statement can take a while.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("backend", backend.Kind).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Ingestion worker did not finish in time")
	}

	log.Info().Msg("Server exited")
}
