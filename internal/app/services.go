package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/gcs"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/normalize"
	"github.com/dvloznov/statement-insights/internal/notionsync"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

// IngestOptions tune the ingestion service for one caller.
type IngestOptions struct {
	// SkipSeen drops uploads whose checksum is already recorded.
	SkipSeen bool
	// NoExport disables the Notion export even when it is configured.
	NoExport bool
	// DryRunExport logs Notion pages instead of creating them.
	DryRunExport bool
}

// Services bundles the model-backed components built from configuration.
type Services struct {
	Ingest    *ingest.Service
	Extractor *extraction.GeminiExtractor
	// Objects is nil when no storage client could be created.
	Objects gcs.ObjectStore

	closers []func() error
}

// PipelineOptions builds the pipeline settings from configuration.
func PipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Normalizer: normalize.New(normalize.PolicyFromConfig(cfg.Normalize)),
		Dedup:      dedup.Engine{WithinBatch: cfg.Dedup.WithinBatch},
	}
}

// NewServices creates the Gemini extractor, the optional storage client and
// Notion exporter, and the ingestion service on top of backend.
func NewServices(ctx context.Context, cfg *config.Config, backend *Backend, opts IngestOptions) (*Services, error) {
	log := logger.FromContext(ctx)

	gemini, err := extraction.NewGeminiExtractor(ctx, cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("NewServices: %w", err)
	}
	svc := &Services{Extractor: gemini}

	var extractor extraction.Extractor = gemini
	if cfg.Gemini.CacheExtractions {
		extractor = extraction.NewCachedExtractor(gemini)
	}

	ingestOpts := []ingest.Option{
		ingest.WithRunRecorder(backend),
		ingest.WithModelName(gemini.ModelName()),
		ingest.WithPipelineOptions(PipelineOptions(cfg)),
	}
	if opts.SkipSeen {
		ingestOpts = append(ingestOpts, ingest.WithSkipSeenDocuments(backend))
	}

	objects, err := gcs.NewClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cloud Storage unavailable; gs:// inputs and archiving are disabled")
	} else {
		svc.Objects = objects
		svc.closers = append(svc.closers, objects.Close)
		if cfg.GCP.Bucket != "" {
			ingestOpts = append(ingestOpts, ingest.WithArchive(objects, cfg.GCP.Bucket))
		}
	}

	if cfg.Notion.Enabled() && !opts.NoExport {
		exporter := notionsync.NewExporter(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID, opts.DryRunExport)
		ingestOpts = append(ingestOpts, ingest.WithExporter(exporter))
		log.Debug().Bool("dry_run", opts.DryRunExport).Msg("Notion export enabled")
	}

	svc.Ingest = ingest.NewService(extractor, backend, ingestOpts...)
	return svc, nil
}

// Close releases clients created by NewServices.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
