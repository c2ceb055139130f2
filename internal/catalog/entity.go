// Package catalog models the marketplace entities and their stores.
package catalog

import (
	"github.com/rotisserie/eris"

	"github.com/plannora/marketplace-cli/pkg/geocode"
)

// Kind selects one of the two marketplace entity tables.
type Kind string

const (
	KindEstablishments Kind = "establishments"
	KindPartners       Kind = "partners"
)

// Kinds lists every entity kind in processing order.
var Kinds = []Kind{KindEstablishments, KindPartners}

// ParseKind validates a kind name from the CLI.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEstablishments, KindPartners:
		return Kind(s), nil
	}
	return "", eris.Errorf("catalog: unknown kind %q (want establishments or partners)", s)
}

// Entity is one establishment or partner row.
type Entity struct {
	ID         int64    `yaml:"id"`
	Name       string   `yaml:"name"`
	Street     string   `yaml:"street"`
	City       string   `yaml:"city"`
	PostalCode string   `yaml:"postal_code"`
	Country    string   `yaml:"country"`
	Latitude   *float64 `yaml:"latitude"`
	Longitude  *float64 `yaml:"longitude"`
	// ImageSources are external URLs still hosted by the scraped sites.
	ImageSources []string `yaml:"image_sources"`
	// Images are URLs already migrated to our object storage.
	Images []string `yaml:"images"`
}

// EntityID implements batch.Entity.
func (e Entity) EntityID() int64 { return e.ID }

// EntityLabel implements batch.Entity.
func (e Entity) EntityLabel() string { return e.Name }

// Address builds the structured address for geocoding.
func (e Entity) Address() geocode.Address {
	return geocode.Address{
		Street:     e.Street,
		City:       e.City,
		PostalCode: e.PostalCode,
		Country:    e.Country,
	}
}

// Geocoded reports whether both coordinates are set.
func (e Entity) Geocoded() bool {
	return e.Latitude != nil && e.Longitude != nil
}
