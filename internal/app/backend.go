// Package app wires configuration into storage backends and services
// shared by the CLI and the API server.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/config"
	bqinfra "github.com/dvloznov/statement-insights/internal/infra/bigquery"
	mongoinfra "github.com/dvloznov/statement-insights/internal/infra/mongo"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/dvloznov/statement-insights/internal/store/memory"
)

// repository is what every backend implements.
type repository interface {
	store.Store
	store.RunRecorder
	store.DocumentLister
	store.DocumentRemover
	store.Backfiller
}

// Backend is an opened storage backend.
type Backend struct {
	Kind string
	repository

	ensure  func(ctx context.Context) error
	closers []func() error
}

// OpenBackend connects to the backend named by cfg.Storage.Backend.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	log := logger.FromContext(ctx)

	switch cfg.Storage.Backend {
	case config.BackendBigQuery:
		repo, err := bqinfra.NewRepository(ctx, cfg.GCP)
		if err != nil {
			return nil, fmt.Errorf("OpenBackend: %w", err)
		}
		log.Debug().
			Str("project_id", cfg.GCP.ProjectID).
			Str("dataset", cfg.GCP.Dataset).
			Msg("Using BigQuery backend")
		return &Backend{
			Kind:       config.BackendBigQuery,
			repository: repo,
			ensure: func(ctx context.Context) error {
				applied, err := repo.EnsureSchema(ctx, bqinfra.Migrations)
				if err != nil {
					return err
				}
				log := logger.FromContext(ctx)
				log.Info().Ints("applied", applied).Msg("BigQuery schema is up to date")
				return nil
			},
			closers: []func() error{repo.Close},
		}, nil

	case config.BackendMongo:
		client, err := mongoinfra.Connect(ctx, cfg.Storage.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("OpenBackend: %w", err)
		}
		repo := mongoinfra.NewRepository(mongoinfra.NewProvider(client, cfg.Storage.MongoDatabase))
		log.Debug().Str("database", cfg.Storage.MongoDatabase).Msg("Using MongoDB backend")
		return &Backend{
			Kind:       config.BackendMongo,
			repository: repo,
			ensure:     repo.EnsureIndexes,
			closers: []func() error{func() error {
				return client.Disconnect(context.Background())
			}},
		}, nil

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory backend; data is lost on exit")
		return NewMemoryBackend(memory.New()), nil
	}

	return nil, fmt.Errorf("OpenBackend: %w: unknown storage.backend %q", config.ErrInvalidConfig, cfg.Storage.Backend)
}

// NewMemoryBackend wraps an in-memory store.
func NewMemoryBackend(s *memory.Store) *Backend {
	return &Backend{Kind: config.BackendMemory, repository: s}
}

// EnsureSchema creates tables or indexes the backend needs. It is a no-op
// for the memory backend.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if b.ensure == nil {
		return nil
	}
	if err := b.ensure(ctx); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

// Close releases backend connections.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
