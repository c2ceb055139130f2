package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/plannora/marketplace-cli/internal/batch"
	"github.com/plannora/marketplace-cli/internal/catalog"
	"github.com/plannora/marketplace-cli/internal/checkpoint"
	"github.com/plannora/marketplace-cli/internal/db"
	"github.com/plannora/marketplace-cli/internal/images"
	"github.com/plannora/marketplace-cli/pkg/blob"
	"github.com/plannora/marketplace-cli/pkg/geocode"
)

// openStore builds the catalog store selected by store.driver.
func openStore(ctx context.Context) (catalog.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &pooledStore{PostgresStore: catalog.NewPostgresStore(pool), pool: pool}, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "marketplace.db"
		}
		return catalog.NewSQLite(dsn)
	}
	return nil, eris.Errorf("store: unknown driver %q (want postgres or sqlite)", cfg.Store.Driver)
}

// pooledStore closes the underlying pool with the store.
type pooledStore struct {
	*catalog.PostgresStore
	pool interface{ Close() }
}

func (s *pooledStore) Close() error {
	s.pool.Close()
	return nil
}

// newGeocodeClient builds the address resolver from config.
func newGeocodeClient() geocode.Client {
	return geocode.New(cfg.Geocoder.UserAgent,
		geocode.WithBaseURL(cfg.Geocoder.BaseURL),
		geocode.WithCountryCode(cfg.Geocoder.CountryCode),
		geocode.WithRateLimit(cfg.Geocoder.RateRPS),
		geocode.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Geocoder.TimeoutSecs) * time.Second,
		}),
	)
}

// newMigrator connects to object storage and builds the image migrator.
func newMigrator(ctx context.Context) (*images.Migrator, error) {
	store, err := blob.New(blob.Config{
		Endpoint:      cfg.Blob.Endpoint,
		AccessKey:     cfg.Blob.AccessKey,
		SecretKey:     cfg.Blob.SecretKey,
		Bucket:        cfg.Blob.Bucket,
		UseSSL:        cfg.Blob.UseSSL,
		PublicBaseURL: cfg.Blob.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	opts := []images.Option{
		images.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Images.TimeoutSecs) * time.Second,
		}),
	}
	if cfg.Images.UserAgent != "" {
		opts = append(opts, images.WithUserAgent(cfg.Images.UserAgent))
	}
	if cfg.Images.Referer != "" {
		opts = append(opts, images.WithReferer(cfg.Images.Referer))
	}
	return images.NewMigrator(store, opts...), nil
}

// batchConfig builds runner settings for one job from config plus flags.
func batchConfig(job string, batchSize int, resumeID int64, limit int) batch.Config {
	size := cfg.Batch.Size
	if batchSize > 0 {
		size = batchSize
	}
	return batch.Config{
		Job:             job,
		Checkpoints:     checkpoint.NewStore(cfg.Batch.CheckpointDir, job),
		BatchSize:       size,
		CheckpointEvery: cfg.Batch.CheckpointEvery,
		ItemDelay:       cfg.Batch.ItemDelay(),
		BatchPause:      cfg.Batch.BatchPause(),
		ResumeID:        resumeID,
		Limit:           limit,
	}
}

// resolveKinds maps the CLI argument to the kinds to process.
func resolveKinds(arg string) ([]catalog.Kind, error) {
	if arg == "" || arg == "all" {
		return catalog.Kinds, nil
	}
	kind, err := catalog.ParseKind(arg)
	if err != nil {
		return nil, err
	}
	return []catalog.Kind{kind}, nil
}
