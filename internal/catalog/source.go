package catalog

import "context"

// GeocodeSource adapts a Store's ungeocoded scan to the batch runner.
type GeocodeSource struct {
	store Store
	kind  Kind
}

// NewGeocodeSource creates a scanner over entities missing coordinates.
func NewGeocodeSource(store Store, kind Kind) *GeocodeSource {
	return &GeocodeSource{store: store, kind: kind}
}

func (s *GeocodeSource) Counts(ctx context.Context) (int, int, error) {
	c, err := s.store.GeocodeCounts(ctx, s.kind)
	if err != nil {
		return 0, 0, err
	}
	return c.Total, c.Remaining, nil
}

func (s *GeocodeSource) Next(ctx context.Context, afterID int64, limit int) ([]Entity, error) {
	return s.store.ListUngeocoded(ctx, s.kind, afterID, limit)
}

// ImageSource adapts a Store's missing-images scan to the batch runner.
type ImageSource struct {
	store Store
	kind  Kind
}

// NewImageSource creates a scanner over entities with unmigrated images.
func NewImageSource(store Store, kind Kind) *ImageSource {
	return &ImageSource{store: store, kind: kind}
}

func (s *ImageSource) Counts(ctx context.Context) (int, int, error) {
	c, err := s.store.ImageCounts(ctx, s.kind)
	if err != nil {
		return 0, 0, err
	}
	return c.Total, c.Remaining, nil
}

func (s *ImageSource) Next(ctx context.Context, afterID int64, limit int) ([]Entity, error) {
	return s.store.ListMissingImages(ctx, s.kind, afterID, limit)
}
