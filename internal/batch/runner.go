// Package batch runs resumable, rate-limited backfill jobs over a store
// scanner: scan a batch, process each entity, checkpoint, pause, repeat.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plannora/marketplace-cli/internal/checkpoint"
)

// Entity is the minimal shape the runner needs from a processed item.
type Entity interface {
	EntityID() int64
	EntityLabel() string
}

// Source scans unprocessed entities in ascending id order.
type Source[T Entity] interface {
	// Counts reports how many entities exist and how many still need work.
	Counts(ctx context.Context) (total, remaining int, err error)
	// Next returns up to limit entities with id > afterID, ascending.
	// An empty slice means the scan is complete.
	Next(ctx context.Context, afterID int64, limit int) ([]T, error)
}

// Config tunes one run.
type Config struct {
	Job             string
	Checkpoints     *checkpoint.Store
	BatchSize       int
	CheckpointEvery int
	ItemDelay       time.Duration
	BatchPause      time.Duration
	// ResumeID overrides the checkpoint cursor when > 0.
	ResumeID int64
	// Limit stops the run after this many entities; 0 means no limit.
	Limit int
}

// Summary is the final tally of a run.
type Summary struct {
	Total     int
	Processed int
	Succeeded int
	Failed    int
}

// Run drives a backfill job to completion or interruption. Per-entity
// failures are logged and counted but never abort the run; source, store
// and context errors do, after persisting a checkpoint so the next
// invocation resumes at the same cursor.
func Run[T Entity](ctx context.Context, cfg Config, src Source[T], process func(context.Context, T) error) (*Summary, error) {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.CheckpointEvery < 1 {
		cfg.CheckpointEvery = 10
	}

	total, remaining, err := src.Counts(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: %s: counts", cfg.Job)
	}

	sum := &Summary{Total: total}
	var cursor int64
	var current string

	if cfg.ResumeID > 0 {
		cursor = cfg.ResumeID
		zap.L().Info("resuming from explicit cursor",
			zap.String("job", cfg.Job),
			zap.Int64("after_id", cursor))
	} else if rec, found, err := cfg.Checkpoints.Load(); err != nil {
		return nil, eris.Wrapf(err, "batch: %s: load checkpoint", cfg.Job)
	} else if found {
		cursor = rec.LastProcessedID
		sum.Processed = rec.ProcessedEntities
		sum.Succeeded = rec.Succeeded
		sum.Failed = rec.Failed
		zap.L().Info("resuming from checkpoint",
			zap.String("job", cfg.Job),
			zap.Int64("after_id", cursor),
			zap.Int("processed", sum.Processed))
	}

	zap.L().Info("starting run",
		zap.String("job", cfg.Job),
		zap.Int("total", total),
		zap.Int("remaining", remaining),
		zap.Int("batch_size", cfg.BatchSize))

	save := func() error {
		return cfg.Checkpoints.Save(&checkpoint.Record{
			TotalEntities:     total,
			ProcessedEntities: sum.Processed,
			Succeeded:         sum.Succeeded,
			Failed:            sum.Failed,
			CurrentEntity:     current,
			LastProcessedID:   cursor,
		})
	}

	processedThisRun := 0
	for {
		entities, err := src.Next(ctx, cursor, cfg.BatchSize)
		if err != nil {
			if saveErr := save(); saveErr != nil {
				zap.L().Error("checkpoint save failed", zap.String("job", cfg.Job), zap.Error(saveErr))
			}
			return sum, eris.Wrapf(err, "batch: %s: scan after id %d", cfg.Job, cursor)
		}
		if len(entities) == 0 {
			if err := cfg.Checkpoints.Clear(); err != nil {
				return sum, err
			}
			zap.L().Info("run complete",
				zap.String("job", cfg.Job),
				zap.Int("processed", sum.Processed),
				zap.Int("succeeded", sum.Succeeded),
				zap.Int("failed", sum.Failed))
			return sum, nil
		}

		for i, e := range entities {
			if ctx.Err() != nil {
				if saveErr := save(); saveErr != nil {
					zap.L().Error("checkpoint save failed", zap.String("job", cfg.Job), zap.Error(saveErr))
				}
				zap.L().Warn("run interrupted", zap.String("job", cfg.Job), zap.Int64("after_id", cursor))
				return sum, eris.Wrapf(ctx.Err(), "batch: %s: interrupted", cfg.Job)
			}

			current = e.EntityLabel()
			if err := process(ctx, e); err != nil {
				sum.Failed++
				zap.L().Warn("entity failed",
					zap.String("job", cfg.Job),
					zap.Int64("id", e.EntityID()),
					zap.String("entity", current),
					zap.Error(err))
			} else {
				sum.Succeeded++
				zap.L().Debug("entity done",
					zap.String("job", cfg.Job),
					zap.Int64("id", e.EntityID()),
					zap.String("entity", current))
			}
			sum.Processed++
			processedThisRun++
			cursor = e.EntityID()

			if sum.Processed%cfg.CheckpointEvery == 0 {
				if err := save(); err != nil {
					return sum, err
				}
			}

			if cfg.Limit > 0 && processedThisRun >= cfg.Limit {
				if err := save(); err != nil {
					return sum, err
				}
				zap.L().Info("run limit reached",
					zap.String("job", cfg.Job),
					zap.Int("limit", cfg.Limit))
				return sum, nil
			}

			if i < len(entities)-1 {
				if err := sleep(ctx, cfg.ItemDelay); err != nil {
					if saveErr := save(); saveErr != nil {
						zap.L().Error("checkpoint save failed", zap.String("job", cfg.Job), zap.Error(saveErr))
					}
					return sum, eris.Wrapf(err, "batch: %s: interrupted", cfg.Job)
				}
			}
		}

		if err := save(); err != nil {
			return sum, err
		}

		zap.L().Info("batch done",
			zap.String("job", cfg.Job),
			zap.Int("processed", sum.Processed),
			zap.Int64("after_id", cursor))

		if err := sleep(ctx, cfg.BatchPause); err != nil {
			return sum, eris.Wrapf(err, "batch: %s: interrupted", cfg.Job)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
