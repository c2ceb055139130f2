package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	s := NewStore(t.TempDir(), "geocode-establishments")

	rec, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), "geocode-establishments")

	want := &Record{
		TotalEntities:     120,
		ProcessedEntities: 45,
		Succeeded:         40,
		Failed:            5,
		CurrentEntity:     "Château de Vallery",
		LastProcessedID:   4012,
	}
	require.NoError(t, s.Save(want))

	got, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestSave_OverwritesPrevious(t *testing.T) {
	s := NewStore(t.TempDir(), "images-partners")

	require.NoError(t, s.Save(&Record{ProcessedEntities: 1, LastProcessedID: 10}))
	require.NoError(t, s.Save(&Record{ProcessedEntities: 2, LastProcessedID: 20}))

	got, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(20), got.LastProcessedID)
	assert.Equal(t, 2, got.ProcessedEntities)

	// No temp file left behind
	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_CorruptFileTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "geocode-partners")
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))

	rec, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
}

func TestClear(t *testing.T) {
	s := NewStore(t.TempDir(), "images-establishments")
	require.NoError(t, s.Save(&Record{ProcessedEntities: 3}))

	require.NoError(t, s.Clear())
	_, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)

	// Clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestPath(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "geocode-all")
	assert.Equal(t, filepath.Join(dir, "geocode-all.checkpoint.json"), s.Path())
}
