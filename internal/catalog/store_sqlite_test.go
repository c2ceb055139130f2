package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr(f float64) *float64 { return &f }

func TestSQLite_InsertAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entity{Name: "Château de Vallery", City: "Vallery"}
	require.NoError(t, s.Insert(ctx, KindEstablishments, e))
	assert.Greater(t, e.ID, int64(0))

	e2 := &Entity{Name: "Domaine de Grand Maison", City: "Lyon"}
	require.NoError(t, s.Insert(ctx, KindEstablishments, e2))
	assert.Greater(t, e2.ID, e.ID)
}

func TestSQLite_ListUngeocodedCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a", "b", "c", "d"} {
		e := &Entity{Name: name}
		require.NoError(t, s.Insert(ctx, KindPartners, e))
		ids = append(ids, e.ID)
	}
	// One entity already geocoded: never scanned
	geo := &Entity{Name: "done", Latitude: ptr(48.85), Longitude: ptr(2.35)}
	require.NoError(t, s.Insert(ctx, KindPartners, geo))

	batch, err := s.ListUngeocoded(ctx, KindPartners, 0, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, ids[1], batch[1].ID)

	// Cursor is exclusive and ascending
	batch, err = s.ListUngeocoded(ctx, KindPartners, ids[1], 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, ids[2], batch[0].ID)
	assert.Equal(t, ids[3], batch[1].ID)
}

func TestSQLite_UpdateCoordinatesRemovesFromScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entity{Name: "Le Pavillon", Street: "3 rue des Fleurs", City: "Nantes"}
	require.NoError(t, s.Insert(ctx, KindEstablishments, e))

	require.NoError(t, s.UpdateCoordinates(ctx, KindEstablishments, e.ID, 47.218, -1.553))

	batch, err := s.ListUngeocoded(ctx, KindEstablishments, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	counts, err := s.GeocodeCounts(ctx, KindEstablishments)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 1, Remaining: 0}, counts)
}

func TestSQLite_UpdateCoordinatesValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entity{Name: "x"}
	require.NoError(t, s.Insert(ctx, KindEstablishments, e))

	err := s.UpdateCoordinates(ctx, KindEstablishments, e.ID, 91, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	err = s.UpdateCoordinates(ctx, KindEstablishments, 9999, 48.0, 2.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such entity")
}

func TestSQLite_ListMissingImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withSources := &Entity{Name: "a", ImageSources: []string{"https://cdn.old/1.jpg"}}
	require.NoError(t, s.Insert(ctx, KindEstablishments, withSources))

	noSources := &Entity{Name: "b"}
	require.NoError(t, s.Insert(ctx, KindEstablishments, noSources))

	migrated := &Entity{Name: "c",
		ImageSources: []string{"https://cdn.old/2.jpg"},
		Images:       []string{"https://media.new/2.jpg"}}
	require.NoError(t, s.Insert(ctx, KindEstablishments, migrated))

	batch, err := s.ListMissingImages(ctx, KindEstablishments, 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, withSources.ID, batch[0].ID)
	assert.Equal(t, []string{"https://cdn.old/1.jpg"}, batch[0].ImageSources)

	counts, err := s.ImageCounts(ctx, KindEstablishments)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 2, Remaining: 1}, counts)
}

func TestSQLite_AppendImagesMergesAndDedups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entity{Name: "a",
		ImageSources: []string{"s1", "s2"},
		Images:       []string{"https://media.new/old.jpg"}}
	require.NoError(t, s.Insert(ctx, KindPartners, e))

	require.NoError(t, s.AppendImages(ctx, KindPartners, e.ID,
		[]string{"https://media.new/old.jpg", "https://media.new/new.jpg"}))

	// Entity now has images: out of the missing-images scan
	batch, err := s.ListMissingImages(ctx, KindPartners, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	// Check the merged list through the ungeocoded scan
	all, err := s.ListUngeocoded(ctx, KindPartners, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"https://media.new/old.jpg", "https://media.new/new.jpg"}, all[0].Images)
}

func TestSQLite_CountsEmptyTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	geo, err := s.GeocodeCounts(ctx, KindPartners)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, geo)

	img, err := s.ImageCounts(ctx, KindPartners)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, img)
}

func TestSeedFromFixture(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	fixture := `
establishments:
  - name: Château de Vallery
    street: 12 rue de l'Orangerie
    city: Vallery
    postal_code: "89150"
    country: France
    image_sources:
      - https://cdn.old/vallery-1.jpg
partners:
  - name: Fleurs & Co
    city: Paris
`
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0644))

	f, err := LoadFixture(path)
	require.NoError(t, err)

	n, err := Seed(ctx, s, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := s.GeocodeCounts(ctx, KindEstablishments)
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 1, Remaining: 1}, counts)

	batch, err := s.ListMissingImages(ctx, KindEstablishments, 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Château de Vallery", batch[0].Name)
}

func TestGeocodeSourceAdapter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		require.NoError(t, s.Insert(ctx, KindEstablishments, &Entity{Name: name}))
	}

	src := NewGeocodeSource(s, KindEstablishments)
	total, remaining, err := src.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, remaining)

	batch, err := src.Next(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "a", batch[0].EntityLabel())
}
