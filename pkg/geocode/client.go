// Package geocode resolves free-text postal addresses to coordinates
// against a Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Address is a structured postal address. Empty parts are skipped when
// building the search query.
type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Query joins the non-empty address parts into a single search string.
func (a Address) Query() string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.PostalCode, a.Country} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Result is a resolved coordinate pair.
type Result struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
}

// Client resolves addresses to coordinates.
type Client interface {
	Resolve(ctx context.Context, addr Address) (*Result, error)
}

type client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	countryCode string
	limiter     *rate.Limiter
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(base string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithCountryCode restricts results to one ISO 3166-1 country code.
func WithCountryCode(cc string) Option {
	return func(c *client) { c.countryCode = strings.ToLower(cc) }
}

// WithRateLimit caps outgoing requests per second. Nominatim's usage
// policy allows at most 1 req/s.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New creates a geocoding client. The user agent is mandatory: the public
// Nominatim instance rejects requests without an identifying one.
func New(userAgent string, opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve geocodes an address. On zero results the query degrades through
// progressively looser variants before giving up with ErrNotFound. Any
// transport or provider error aborts immediately.
func (c *client) Resolve(ctx context.Context, addr Address) (*Result, error) {
	variants := queryVariants(addr)
	if len(variants) == 0 {
		return nil, ErrEmptyAddress
	}

	for _, q := range variants {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "geocode: rate limiter")
			}
		}

		candidates, err := c.search(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}

		return parseResult(candidates[0])
	}

	return nil, ErrNotFound
}

// nominatimPlace mirrors the fields of a /search response element this
// client consumes. Coordinates come back as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *client) search(ctx context.Context, query string) ([]nominatimPlace, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if c.countryCode != "" {
		params.Set("countrycodes", c.countryCode)
	}

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: search %q", query)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: decode response")
	}

	return places, nil
}

func parseResult(p nominatimPlace) (*Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse latitude %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: parse longitude %q", p.Lon)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}
	return &Result{Latitude: lat, Longitude: lon, DisplayName: p.DisplayName}, nil
}
