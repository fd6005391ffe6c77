// Package geocode resolves postal addresses to coordinates through a
// Nominatim-compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Lookuper resolves a free-form query to at most one coordinate.
type Lookuper interface {
	Lookup(ctx context.Context, query string) (store.Coordinate, bool, error)
}

// Client calls a Nominatim-compatible /search endpoint.
type Client struct {
	BaseURL   string
	UserAgent string
	Email     string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

type candidate struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup queries the service and returns the first candidate. An empty
// result or an unusable candidate is reported as not found, not as an error.
func (c *Client) Lookup(ctx context.Context, query string) (store.Coordinate, bool, error) {
	if c.BaseURL == "" {
		return store.Coordinate{}, false, fmt.Errorf("geocode: base URL required")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if c.Email != "" {
		params.Set("email", c.Email)
	}
	sep := "?"
	if strings.Contains(c.BaseURL, "?") {
		sep = "&"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+sep+params.Encode(), nil)
	if err != nil {
		return store.Coordinate{}, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return store.Coordinate{}, false, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return store.Coordinate{}, false, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var candidates []candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return store.Coordinate{}, false, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(candidates) == 0 {
		return store.Coordinate{}, false, nil
	}

	first := candidates[0]
	lat, err := strconv.ParseFloat(strings.TrimSpace(first.Lat), 64)
	if err != nil {
		c.logger().Debug("unparsable latitude", zap.String("query", query), zap.String("lat", first.Lat))
		return store.Coordinate{}, false, nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(first.Lon), 64)
	if err != nil {
		c.logger().Debug("unparsable longitude", zap.String("query", query), zap.String("lon", first.Lon))
		return store.Coordinate{}, false, nil
	}

	coord := store.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return store.Coordinate{}, false, nil
	}
	return coord, true, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

// FormatAddress joins the non-empty address fields in a fixed order:
// street, building, unit, locality, postal code, post office, district,
// county, region, country.
func FormatAddress(a store.Address) string {
	fields := []string{
		a.Street, a.Building, a.Unit, a.Locality, a.PostalCode,
		a.PostOffice, a.District, a.County, a.Region, a.Country,
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ", ")
}
