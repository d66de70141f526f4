// Package zipcentroid looks up the centroid coordinate of a US ZIP code from
// a reference dataset service. It backs the invalid-coordinate rescue path of
// address resolution.
package zipcentroid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.assetval.com/zip-centroids"

// Location is the centroid of a ZIP code area.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client fetches ZIP centroids over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a centroid lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupResponse struct {
	Location *Location `json:"location"`
}

// Lookup returns the centroid for a 5-digit ZIP, or nil when the ZIP is not
// in the reference dataset. An unknown ZIP is not an error; only transport
// and decode failures are.
func (c *Client) Lookup(ctx context.Context, zip string) (*Location, error) {
	zip = strings.TrimSpace(zip)
	if len(zip) > 5 {
		zip = zip[:5]
	}
	if zip == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+zip, nil)
	if err != nil {
		return nil, eris.Wrap(err, "zipcentroid: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zipcentroid: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("zipcentroid: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zipcentroid: read body")
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "zipcentroid: parse response")
	}
	return lr.Location, nil
}
