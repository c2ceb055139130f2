package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/plannora/marketplace-cli/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const entityColumns = `id, name, street, city, postal_code, country, latitude, longitude, image_sources, images`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS establishments (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	street        TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	image_sources JSONB NOT NULL DEFAULT '[]',
	images        JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS partners (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	street        TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	image_sources JSONB NOT NULL DEFAULT '[]',
	images        JSONB NOT NULL DEFAULT '[]'
);
`

// Migrate creates the catalog tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "catalog: migrate")
	}
	return nil
}

// table maps a kind to its table name. Kind is a closed enum so the name is
// safe to interpolate.
func table(kind Kind) string {
	return string(kind)
}

// Insert adds an entity and sets its assigned id.
func (s *PostgresStore) Insert(ctx context.Context, kind Kind, e *Entity) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO `+table(kind)+` (
			name, street, city, postal_code, country,
			latitude, longitude, image_sources, images
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		e.Name, e.Street, e.City, e.PostalCode, e.Country,
		e.Latitude, e.Longitude, jsonList(e.ImageSources), jsonList(e.Images),
	).Scan(&e.ID)
	if err != nil {
		return eris.Wrapf(err, "catalog: insert into %s", kind)
	}
	return nil
}

// InsertMany bulk-loads entities with the COPY protocol. Ids are assigned
// by the database and not reported back; used for seeding.
func (s *PostgresStore) InsertMany(ctx context.Context, kind Kind, entities []Entity) (int64, error) {
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []any{
			e.Name, e.Street, e.City, e.PostalCode, e.Country,
			e.Latitude, e.Longitude, jsonList(e.ImageSources), jsonList(e.Images),
		})
	}
	return db.CopyFrom(ctx, s.pool, table(kind), []string{
		"name", "street", "city", "postal_code", "country",
		"latitude", "longitude", "image_sources", "images",
	}, rows)
}

// ListUngeocoded scans entities missing a coordinate, id ascending.
func (s *PostgresStore) ListUngeocoded(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entityColumns+`
		FROM `+table(kind)+`
		WHERE (latitude IS NULL OR longitude IS NULL) AND id > $1
		ORDER BY id ASC
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list ungeocoded %s", kind)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// UpdateCoordinates writes both coordinates of one entity.
func (s *PostgresStore) UpdateCoordinates(ctx context.Context, kind Kind, id int64, lat, lon float64) error {
	if err := validateCoordinates(lat, lon); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+table(kind)+` SET latitude = $2, longitude = $3 WHERE id = $1`,
		id, lat, lon)
	if err != nil {
		return eris.Wrapf(err, "catalog: update coordinates %s/%d", kind, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("catalog: update coordinates %s/%d: no such entity", kind, id)
	}
	return nil
}

// ListMissingImages scans entities with source URLs but no migrated images.
func (s *PostgresStore) ListMissingImages(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entityColumns+`
		FROM `+table(kind)+`
		WHERE jsonb_array_length(image_sources) > 0
		  AND jsonb_array_length(images) = 0
		  AND id > $1
		ORDER BY id ASC
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list missing images %s", kind)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// AppendImages merges urls into the entity's migrated image list inside a
// transaction so concurrent writers cannot drop entries.
func (s *PostgresStore) AppendImages(ctx context.Context, kind Kind, id int64, urls []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "catalog: append images: begin tx")
	}
	defer tx.Rollback(ctx)

	var existing []string
	err = tx.QueryRow(ctx, `
		SELECT images FROM `+table(kind)+` WHERE id = $1 FOR UPDATE`, id).Scan(&existing)
	if err != nil {
		return eris.Wrapf(err, "catalog: append images %s/%d: load", kind, id)
	}

	merged := mergeImages(existing, urls)
	if _, err := tx.Exec(ctx, `
		UPDATE `+table(kind)+` SET images = $2 WHERE id = $1`,
		id, jsonList(merged)); err != nil {
		return eris.Wrapf(err, "catalog: append images %s/%d: update", kind, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "catalog: append images: commit tx")
	}
	return nil
}

// GeocodeCounts reports the geocoding backlog for one kind.
func (s *PostgresStore) GeocodeCounts(ctx context.Context, kind Kind) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE latitude IS NULL OR longitude IS NULL)
		FROM `+table(kind)).Scan(&c.Total, &c.Remaining)
	if err != nil {
		return Counts{}, eris.Wrapf(err, "catalog: geocode counts %s", kind)
	}
	return c, nil
}

// ImageCounts reports the image migration backlog for one kind.
func (s *PostgresStore) ImageCounts(ctx context.Context, kind Kind) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE jsonb_array_length(image_sources) > 0),
		       COUNT(*) FILTER (WHERE jsonb_array_length(image_sources) > 0
		                          AND jsonb_array_length(images) = 0)
		FROM `+table(kind)).Scan(&c.Total, &c.Remaining)
	if err != nil {
		return Counts{}, eris.Wrapf(err, "catalog: image counts %s", kind)
	}
	return c, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// jsonList normalizes a nil slice to an empty JSON array for jsonb columns.
func jsonList(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntities(rows rowScanner) ([]Entity, error) {
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Street, &e.City, &e.PostalCode, &e.Country,
			&e.Latitude, &e.Longitude, &e.ImageSources, &e.Images,
		); err != nil {
			return nil, eris.Wrap(err, "catalog: scan entity")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate entities")
	}
	return out, nil
}
