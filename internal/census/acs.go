// Package census fetches ACS population estimates and joins them onto county
// boundary polygons to produce the density reference dataset.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.census.gov"

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the Census Bureau data API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a census API client. The key may be empty for the
// unauthenticated rate tier.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCountyPopulation returns total population (ACS 5-year estimate,
// variable B01003_001E) keyed by 5-digit county FIPS for the given vintage
// year.
func (c *Client) FetchCountyPopulation(ctx context.Context, year int) (map[string]float64, error) {
	url := fmt.Sprintf("%s/data/%d/acs/acs5?get=NAME,B01003_001E&for=county:*", c.baseURL, year)
	if c.apiKey != "" {
		url += "&key=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "census: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "census: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("census: API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	// The API returns a header row followed by data rows, all strings.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "census: parse response")
	}
	if len(rows) < 2 {
		return nil, eris.New("census: response has no data rows")
	}

	popIdx, stateIdx, countyIdx := columnIndices(rows[0])
	if popIdx < 0 || stateIdx < 0 || countyIdx < 0 {
		return nil, eris.Errorf("census: missing expected columns in header %v", rows[0])
	}

	out := make(map[string]float64, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		if len(row) <= popIdx || len(row) <= stateIdx || len(row) <= countyIdx {
			skipped++
			continue
		}
		pop, err := strconv.ParseFloat(row[popIdx], 64)
		if err != nil {
			skipped++
			continue
		}
		out[row[stateIdx]+row[countyIdx]] = pop
	}
	if skipped > 0 {
		zap.L().Warn("skipped malformed census rows", zap.Int("skipped", skipped))
	}
	return out, nil
}

func columnIndices(header []string) (pop, state, county int) {
	pop, state, county = -1, -1, -1
	for i, name := range header {
		switch name {
		case "B01003_001E":
			pop = i
		case "state":
			state = i
		case "county":
			county = i
		}
	}
	return pop, state, county
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
