package batch

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannora/marketplace-cli/internal/checkpoint"
)

type item struct {
	id   int64
	name string
}

func (i item) EntityID() int64     { return i.id }
func (i item) EntityLabel() string { return i.name }

// fakeSource mimics a store scanner: processed items drop out of scans.
type fakeSource struct {
	items   []item
	done    map[int64]bool
	nextErr error
}

func newFakeSource(ids ...int64) *fakeSource {
	s := &fakeSource{done: map[int64]bool{}}
	for _, id := range ids {
		s.items = append(s.items, item{id: id, name: "entity-" + string(rune('a'+len(s.items)))})
	}
	return s
}

func (s *fakeSource) Counts(ctx context.Context) (int, int, error) {
	remaining := 0
	for _, it := range s.items {
		if !s.done[it.id] {
			remaining++
		}
	}
	return len(s.items), remaining, nil
}

func (s *fakeSource) Next(ctx context.Context, afterID int64, limit int) ([]item, error) {
	if s.nextErr != nil {
		return nil, s.nextErr
	}
	var out []item
	for _, it := range s.items {
		if it.id > afterID && !s.done[it.id] {
			out = append(out, it)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func testConfig(t *testing.T, job string) Config {
	t.Helper()
	return Config{
		Job:             job,
		Checkpoints:     checkpoint.NewStore(t.TempDir(), job),
		BatchSize:       2,
		CheckpointEvery: 2,
	}
}

func TestRun_ProcessesAllAndClearsCheckpoint(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	cfg := testConfig(t, "geocode-establishments")

	sum, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, 0, sum.Failed)

	_, found, err := cfg.Checkpoints.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRun_EntityFailureDoesNotAbort(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	cfg := testConfig(t, "geocode-establishments")

	sum, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		if it.id == 2 {
			return errors.New("address not found")
		}
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	// Completed: no checkpoint left even with a failure
	_, found, _ := cfg.Checkpoints.Load()
	assert.False(t, found)
}

func TestRun_InterruptSavesCheckpointAndResumes(t *testing.T) {
	src := newFakeSource(1, 2, 3, 4)
	cfg := testConfig(t, "images-partners")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := Run(ctx, cfg, src, func(ctx context.Context, it item) error {
		src.done[it.id] = true
		if it.id == 2 {
			cancel()
		}
		return nil
	})
	require.Error(t, err)

	rec, found, loadErr := cfg.Checkpoints.Load()
	require.NoError(t, loadErr)
	require.True(t, found)
	assert.Equal(t, int64(2), rec.LastProcessedID)
	assert.Equal(t, 2, rec.ProcessedEntities)
	assert.Equal(t, 2, rec.Succeeded)

	// Second invocation picks up after id 2 and finishes
	sum, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		assert.Greater(t, it.id, int64(2))
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 4, sum.Succeeded)

	_, found, _ = cfg.Checkpoints.Load()
	assert.False(t, found)
}

func TestRun_ExplicitResumeIDOverridesCheckpoint(t *testing.T) {
	src := newFakeSource(1, 2, 3)
	cfg := testConfig(t, "geocode-partners")
	require.NoError(t, cfg.Checkpoints.Save(&checkpoint.Record{LastProcessedID: 1, ProcessedEntities: 1}))
	cfg.ResumeID = 2

	var seen []int64
	sum, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		seen = append(seen, it.id)
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, seen)
	// Counters start fresh when the cursor is explicit
	assert.Equal(t, 1, sum.Processed)
}

func TestRun_LimitStopsEarlyAndKeepsCheckpoint(t *testing.T) {
	src := newFakeSource(1, 2, 3, 4, 5)
	cfg := testConfig(t, "geocode-establishments")
	cfg.Limit = 3

	sum, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Processed)

	rec, found, loadErr := cfg.Checkpoints.Load()
	require.NoError(t, loadErr)
	require.True(t, found)
	assert.Equal(t, int64(3), rec.LastProcessedID)
}

func TestRun_SourceErrorPropagatesAfterCheckpoint(t *testing.T) {
	src := newFakeSource(1, 2)
	src.nextErr = errors.New("connection refused")
	cfg := testConfig(t, "geocode-establishments")

	_, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan after id")

	// A checkpoint exists so the next run can retry from the same cursor
	_, found, loadErr := cfg.Checkpoints.Load()
	require.NoError(t, loadErr)
	assert.True(t, found)

	_ = os.Remove(cfg.Checkpoints.Path())
}

func TestRun_CursorStrictlyAscending(t *testing.T) {
	src := newFakeSource(5, 9, 12)
	cfg := testConfig(t, "geocode-establishments")

	var seen []int64
	_, err := Run(context.Background(), cfg, src, func(ctx context.Context, it item) error {
		seen = append(seen, it.id)
		src.done[it.id] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 9, 12}, seen)
}
