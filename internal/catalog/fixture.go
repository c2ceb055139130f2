package catalog

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fixture is a YAML seed file with entities for both kinds.
type Fixture struct {
	Establishments []Entity `yaml:"establishments"`
	Partners       []Entity `yaml:"partners"`
}

// LoadFixture reads and parses a seed file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read fixture %s", path)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse fixture %s", path)
	}
	return &f, nil
}

// bulkInserter is implemented by stores that can load many rows at once.
type bulkInserter interface {
	InsertMany(ctx context.Context, kind Kind, entities []Entity) (int64, error)
}

// Seed migrates the schema and inserts every fixture entity. Returns the
// number of entities inserted.
func Seed(ctx context.Context, store Store, f *Fixture) (int, error) {
	if err := store.Migrate(ctx); err != nil {
		return 0, err
	}

	if bulk, ok := store.(bulkInserter); ok {
		n := int64(0)
		for _, batch := range []struct {
			kind     Kind
			entities []Entity
		}{
			{KindEstablishments, f.Establishments},
			{KindPartners, f.Partners},
		} {
			inserted, err := bulk.InsertMany(ctx, batch.kind, batch.entities)
			if err != nil {
				return int(n), err
			}
			n += inserted
		}
		return int(n), nil
	}

	n := 0
	for i := range f.Establishments {
		if err := store.Insert(ctx, KindEstablishments, &f.Establishments[i]); err != nil {
			return n, err
		}
		n++
	}
	for i := range f.Partners {
		if err := store.Insert(ctx, KindPartners, &f.Partners[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
