package geocode

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAddress is returned when an address has no usable parts.
	// No HTTP request is made in this case.
	ErrEmptyAddress = errors.New("geocode: empty address")

	// ErrNotFound is returned when every query variant produced zero candidates.
	ErrNotFound = errors.New("geocode: address not found")

	// ErrInvalidCoordinates is returned when the provider answers with
	// coordinates outside the valid latitude/longitude ranges.
	ErrInvalidCoordinates = errors.New("geocode: coordinates out of range")
)

// StatusError reports a non-200 response from the geocoding provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: provider returned status %d: %s", e.StatusCode, e.Body)
}
