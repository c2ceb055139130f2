package catalog

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
)

// Counts is a backlog snapshot for one kind and one backfill.
type Counts struct {
	Total     int
	Remaining int
}

// Store is the catalog persistence surface. Implementations exist for
// postgres (production) and sqlite (local runs and tests).
type Store interface {
	// Migrate creates the schema if needed.
	Migrate(ctx context.Context) error

	// Insert adds an entity and fills in its assigned id.
	Insert(ctx context.Context, kind Kind, e *Entity) error

	// ListUngeocoded returns entities missing a coordinate, id > afterID,
	// ascending, at most limit rows.
	ListUngeocoded(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error)

	// UpdateCoordinates writes both coordinates of one entity. Once set,
	// the entity no longer appears in ListUngeocoded.
	UpdateCoordinates(ctx context.Context, kind Kind, id int64, lat, lon float64) error

	// ListMissingImages returns entities that have source URLs but no
	// migrated images yet, same cursor semantics as ListUngeocoded.
	ListMissingImages(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error)

	// AppendImages merges urls into the entity's migrated image list,
	// skipping duplicates and keeping existing entries.
	AppendImages(ctx context.Context, kind Kind, id int64, urls []string) error

	// GeocodeCounts reports total entities and how many lack coordinates.
	GeocodeCounts(ctx context.Context, kind Kind) (Counts, error)

	// ImageCounts reports entities with source URLs and how many of those
	// have no migrated images yet.
	ImageCounts(ctx context.Context, kind Kind) (Counts, error)

	Close() error
}

// validateCoordinates rejects NaN, infinite and out-of-range values before
// they reach a store.
func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return eris.Errorf("catalog: non-finite coordinates (%f, %f)", lat, lon)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return eris.Errorf("catalog: coordinates out of range (%f, %f)", lat, lon)
	}
	return nil
}

// mergeImages appends added URLs to existing, dropping duplicates and
// preserving order.
func mergeImages(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, u := range existing {
		if u != "" && !seen[u] {
			seen[u] = true
			merged = append(merged, u)
		}
	}
	for _, u := range added {
		if u != "" && !seen[u] {
			seen[u] = true
			merged = append(merged, u)
		}
	}
	return merged
}
