package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. Image lists are
// stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "catalog: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS establishments (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	street        TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	latitude      REAL,
	longitude     REAL,
	image_sources TEXT NOT NULL DEFAULT '[]',
	images        TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS partners (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	street        TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	latitude      REAL,
	longitude     REAL,
	image_sources TEXT NOT NULL DEFAULT '[]',
	images        TEXT NOT NULL DEFAULT '[]'
);
`

// Migrate creates the catalog tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "catalog: sqlite migrate")
	}
	return nil
}

// Insert adds an entity and sets its assigned id.
func (s *SQLiteStore) Insert(ctx context.Context, kind Kind, e *Entity) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table(kind)+` (
			name, street, city, postal_code, country,
			latitude, longitude, image_sources, images
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.Street, e.City, e.PostalCode, e.Country,
		e.Latitude, e.Longitude, marshalList(e.ImageSources), marshalList(e.Images))
	if err != nil {
		return eris.Wrapf(err, "catalog: insert into %s", kind)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "catalog: insert id")
	}
	e.ID = id
	return nil
}

// ListUngeocoded scans entities missing a coordinate, id ascending.
func (s *SQLiteStore) ListUngeocoded(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM `+table(kind)+`
		WHERE (latitude IS NULL OR longitude IS NULL) AND id > ?
		ORDER BY id ASC
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list ungeocoded %s", kind)
	}
	defer rows.Close()
	return scanSQLiteEntities(rows)
}

// UpdateCoordinates writes both coordinates of one entity.
func (s *SQLiteStore) UpdateCoordinates(ctx context.Context, kind Kind, id int64, lat, lon float64) error {
	if err := validateCoordinates(lat, lon); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE `+table(kind)+` SET latitude = ?, longitude = ? WHERE id = ?`,
		lat, lon, id)
	if err != nil {
		return eris.Wrapf(err, "catalog: update coordinates %s/%d", kind, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "catalog: update coordinates rows")
	}
	if n == 0 {
		return eris.Errorf("catalog: update coordinates %s/%d: no such entity", kind, id)
	}
	return nil
}

// ListMissingImages scans entities with source URLs but no migrated images.
func (s *SQLiteStore) ListMissingImages(ctx context.Context, kind Kind, afterID int64, limit int) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM `+table(kind)+`
		WHERE json_array_length(image_sources) > 0
		  AND json_array_length(images) = 0
		  AND id > ?
		ORDER BY id ASC
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: list missing images %s", kind)
	}
	defer rows.Close()
	return scanSQLiteEntities(rows)
}

// AppendImages merges urls into the entity's migrated image list.
func (s *SQLiteStore) AppendImages(ctx context.Context, kind Kind, id int64, urls []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "catalog: append images: begin tx")
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT images FROM `+table(kind)+` WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		return eris.Wrapf(err, "catalog: append images %s/%d: load", kind, id)
	}
	existing, err := unmarshalList(raw)
	if err != nil {
		return eris.Wrapf(err, "catalog: append images %s/%d: decode", kind, id)
	}

	merged := mergeImages(existing, urls)
	if _, err := tx.ExecContext(ctx, `
		UPDATE `+table(kind)+` SET images = ? WHERE id = ?`,
		marshalList(merged), id); err != nil {
		return eris.Wrapf(err, "catalog: append images %s/%d: update", kind, id)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "catalog: append images: commit tx")
	}
	return nil
}

// GeocodeCounts reports the geocoding backlog for one kind.
func (s *SQLiteStore) GeocodeCounts(ctx context.Context, kind Kind) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN latitude IS NULL OR longitude IS NULL THEN 1 ELSE 0 END)
		FROM `+table(kind)).Scan(&c.Total, &nullInt{&c.Remaining})
	if err != nil {
		return Counts{}, eris.Wrapf(err, "catalog: geocode counts %s", kind)
	}
	return c, nil
}

// ImageCounts reports the image migration backlog for one kind.
func (s *SQLiteStore) ImageCounts(ctx context.Context, kind Kind) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(CASE WHEN json_array_length(image_sources) > 0 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN json_array_length(image_sources) > 0
		                 AND json_array_length(images) = 0 THEN 1 ELSE 0 END)
		FROM `+table(kind)).Scan(&nullInt{&c.Total}, &nullInt{&c.Remaining})
	if err != nil {
		return Counts{}, eris.Wrapf(err, "catalog: image counts %s", kind)
	}
	return c, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalList(urls []string) string {
	data, _ := json.Marshal(jsonList(urls))
	return string(data)
}

func unmarshalList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func scanSQLiteEntities(rows *sql.Rows) ([]Entity, error) {
	var out []Entity
	for rows.Next() {
		var e Entity
		var sources, images string
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Street, &e.City, &e.PostalCode, &e.Country,
			&e.Latitude, &e.Longitude, &sources, &images,
		); err != nil {
			return nil, eris.Wrap(err, "catalog: scan entity")
		}
		var err error
		if e.ImageSources, err = unmarshalList(sources); err != nil {
			return nil, eris.Wrapf(err, "catalog: decode image_sources for %d", e.ID)
		}
		if e.Images, err = unmarshalList(images); err != nil {
			return nil, eris.Wrapf(err, "catalog: decode images for %d", e.ID)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate entities")
	}
	return out, nil
}

// nullInt scans a nullable aggregate into an int, treating NULL as 0.
type nullInt struct{ dst *int }

func (n *nullInt) Scan(src any) error {
	var v sql.NullInt64
	if err := v.Scan(src); err != nil {
		return err
	}
	*n.dst = int(v.Int64)
	return nil
}
