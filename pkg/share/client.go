// Package share persists resolved point-sets to the heatmap store and
// retrieves them by their shareable identifier.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Sentinel errors for the persistence gateway.
var (
	// ErrUnavailable indicates the store is unreachable or failing.
	ErrUnavailable = eris.New("share: store unavailable")
	// ErrRejected indicates the store returned a non-success payload.
	ErrRejected = eris.New("share: store rejected request")
	// ErrNotFound indicates an unknown share identifier.
	ErrNotFound = eris.New("share: heatmap not found")
	// ErrDataInvalid indicates stored records lack required coordinates.
	ErrDataInvalid = eris.New("share: stored records missing coordinates")
)

// Geocode is the stored coordinate of one address.
type Geocode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is one resolved point in a stored heatmap.
type Address struct {
	Street  string  `json:"street"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Zip     string  `json:"zip"`
	Geocode Geocode `json:"geocode"`
}

// HasCoordinates reports whether the address carries a usable geocode.
func (a Address) HasCoordinates() bool {
	return a.Geocode.Latitude != 0 && a.Geocode.Longitude != 0
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is the share persistence gateway.
type Client struct {
	apiURL string
	http   *http.Client
}

// NewClient creates a gateway client for the given store base URL.
func NewClient(apiURL string, opts ...Option) *Client {
	c := &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type saveRequest struct {
	Addresses []Address `json:"addresses"`
}

type saveResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID string `json:"_id"`
	} `json:"data"`
}

type loadRequest struct {
	HeatmapID string `json:"heatmapID"`
}

type loadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Addresses []Address `json:"addresses"`
	} `json:"data"`
}

// Save submits a resolved point-set and returns its shareable identifier.
// Addresses without coordinates are excluded from the payload rather than
// treated as an error.
func (c *Client) Save(ctx context.Context, addrs []Address) (string, error) {
	payload := saveRequest{Addresses: make([]Address, 0, len(addrs))}
	for _, a := range addrs {
		if a.HasCoordinates() {
			payload.Addresses = append(payload.Addresses, a)
		}
	}

	var resp saveResponse
	if err := c.post(ctx, "/saveHeatmapData", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.Data.ID == "" {
		return "", eris.Wrap(ErrRejected, "share: save")
	}
	return resp.Data.ID, nil
}

// Load retrieves a previously stored point-set by identifier.
func (c *Client) Load(ctx context.Context, shareID string) ([]Address, error) {
	var resp loadResponse
	if err := c.post(ctx, "/loadHeatmapData", loadRequest{HeatmapID: shareID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.Wrapf(ErrNotFound, "share: load %s", shareID)
	}

	for _, a := range resp.Data.Addresses {
		if !a.HasCoordinates() {
			return nil, eris.Wrapf(ErrDataInvalid, "share: load %s", shareID)
		}
	}
	return resp.Data.Addresses, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "share: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "share: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(ErrUnavailable, "share: request: "+err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(ErrUnavailable, "share: read body")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return eris.Wrap(ErrNotFound, "share: "+path)
	case resp.StatusCode != http.StatusOK:
		return eris.Wrapf(ErrUnavailable, "share: %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "share: decode response")
	}
	return nil
}
