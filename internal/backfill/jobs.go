// Package backfill wires catalog scanners, the geocoding client and the
// image migrator into runnable batch jobs.
package backfill

import (
	"context"

	"github.com/plannora/marketplace-cli/internal/batch"
	"github.com/plannora/marketplace-cli/internal/catalog"
	"github.com/plannora/marketplace-cli/internal/images"
	"github.com/plannora/marketplace-cli/pkg/geocode"
)

// Processor handles one entity.
type Processor func(ctx context.Context, e catalog.Entity) error

// JobName builds the checkpoint job name for one operation and kind.
func JobName(op string, kind catalog.Kind) string {
	return op + "-" + string(kind)
}

// GeocodeJob builds the scanner and processor for a geocoding backfill:
// resolve the entity address, write both coordinates back.
func GeocodeJob(store catalog.Store, kind catalog.Kind, client geocode.Client) (batch.Source[catalog.Entity], Processor) {
	src := catalog.NewGeocodeSource(store, kind)
	process := func(ctx context.Context, e catalog.Entity) error {
		res, err := client.Resolve(ctx, e.Address())
		if err != nil {
			return err
		}
		return store.UpdateCoordinates(ctx, kind, e.ID, res.Latitude, res.Longitude)
	}
	return src, process
}

// ImageJob builds the scanner and processor for an image migration: copy
// every source image to object storage, then record the uploaded URLs.
// URLs are recorded only when every image made it; a partially failed
// entity stays in the scan, and the per-image existence check keeps the
// retry from re-downloading what already landed.
func ImageJob(store catalog.Store, kind catalog.Kind, migrator *images.Migrator, resolution string) (batch.Source[catalog.Entity], Processor) {
	src := catalog.NewImageSource(store, kind)
	process := func(ctx context.Context, e catalog.Entity) error {
		uploaded, err := migrator.MigrateEntity(ctx, string(kind), e.ID, resolution, e.ImageSources)
		if err != nil {
			return err
		}
		return store.AppendImages(ctx, kind, e.ID, uploaded)
	}
	return src, process
}
