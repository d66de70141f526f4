package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultLobBaseURL = "https://api.lob.com/v1"

// LobOption configures the Lob adapter.
type LobOption func(*LobClient)

// WithLobBaseURL overrides the default API base URL.
func WithLobBaseURL(url string) LobOption {
	return func(c *LobClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithLobHTTPClient sets a custom HTTP client.
func WithLobHTTPClient(hc *http.Client) LobOption {
	return func(c *LobClient) { c.http = hc }
}

// WithLobRateLimit sets the requests-per-second limit for API calls.
func WithLobRateLimit(rps float64) LobOption {
	return func(c *LobClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// LobClient is the secondary provider, backed by the Lob US verification API.
type LobClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewLob creates the secondary provider adapter.
func NewLob(apiKey string, opts ...LobOption) *LobClient {
	c := &LobClient{
		apiKey:  apiKey,
		baseURL: defaultLobBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *LobClient) Name() string { return "Secondary" }

type lobRequest struct {
	PrimaryLine   string `json:"primary_line"`
	SecondaryLine string `json:"secondary_line,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
}

type lobResponse struct {
	ID             string `json:"id"`
	PrimaryLine    string `json:"primary_line"`
	SecondaryLine  string `json:"secondary_line"`
	Deliverability string `json:"deliverability"`
	Components     struct {
		City      string  `json:"city"`
		State     string  `json:"state"`
		ZipCode   string  `json:"zip_code"`
		County    string  `json:"county"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"components"`
	Error *struct {
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"error"`
}

// Validate implements Provider. Lob expects upper-cased input and reports a
// single deliverability verdict, so discrepancies are derived by comparing
// the submitted fields against the returned components.
func (c *LobClient) Validate(ctx context.Context, addr Address) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "verify: lob rate limit")
	}

	body := lobRequest{
		PrimaryLine:   strings.ToUpper(addr.Street),
		SecondaryLine: strings.ToUpper(addr.UnitNumber),
		City:          strings.ToUpper(addr.City),
		State:         strings.ToUpper(addr.State),
		ZipCode:       addr.Zip,
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "verify: lob marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/us_verifications", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "verify: lob build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, "verify: lob request: "+err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, "verify: lob read body")
	}

	if resp.StatusCode >= 500 {
		return nil, eris.Wrapf(ErrUnavailable, "verify: lob returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrRejected, "verify: lob returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var lr lobResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, eris.Wrap(err, "verify: lob parse response")
	}
	if lr.Error != nil {
		return nil, eris.Wrapf(ErrRejected, "verify: lob error %d: %s", lr.Error.StatusCode, lr.Error.Message)
	}

	if lr.Components.Latitude == 0 && lr.Components.Longitude == 0 {
		return nil, eris.Wrap(ErrDataInvalid, "verify: lob response has no geocode")
	}

	return normalizeLob(addr, &lr), nil
}

// normalizeLob translates the vendor response into the shared contract.
// Each returned component that differs from the submitted value is recorded
// as a replaced Issue with a matching suggestion.
func normalizeLob(addr Address, lr *lobResponse) *Result {
	res := &Result{
		Geocode: Geocode{
			Latitude:  lr.Components.Latitude,
			Longitude: lr.Components.Longitude,
		},
		Validated: ValidatedAddress{
			Street:     lr.PrimaryLine,
			UnitNumber: lr.SecondaryLine,
			City:       lr.Components.City,
			State:      lr.Components.State,
			Zip:        lr.Components.ZipCode,
			County:     lr.Components.County,
		},
	}

	flag := func(componentType, suggested string) {
		res.Issues = append(res.Issues, Issue{
			ComponentType:     componentType,
			ConfirmationLevel: UnconfirmedPlausible,
			Replaced:          true,
		})
		switch componentType {
		case "street":
			res.Suggestions.Street = suggested
		case "postal_code":
			res.Suggestions.Zip = suggested
		case "state":
			res.Suggestions.State = suggested
		}
	}

	if !strings.EqualFold(strings.TrimSpace(lr.PrimaryLine), strings.TrimSpace(addr.Street)) {
		flag("street", lr.PrimaryLine)
	}
	if !strings.EqualFold(strings.TrimSpace(lr.Components.City), strings.TrimSpace(addr.City)) {
		flag("city", lr.Components.City)
	}
	if !strings.EqualFold(strings.TrimSpace(lr.Components.State), strings.TrimSpace(addr.State)) {
		flag("state", lr.Components.State)
	}
	if zip5(lr.Components.ZipCode) != zip5(addr.Zip) {
		flag("postal_code", lr.Components.ZipCode)
	}

	if lr.Deliverability != "deliverable" {
		res.Issues = append(res.Issues, Issue{
			ComponentType:     "deliverability",
			ConfirmationLevel: UnconfirmedSuspicious,
		})
	}

	res.AllValid = lr.Deliverability == "deliverable" && len(res.Issues) == 0
	return res
}

// zip5 strips a ZIP+4 suffix for comparison.
func zip5(zip string) string {
	zip = strings.TrimSpace(zip)
	if i := strings.IndexByte(zip, '-'); i >= 0 {
		return zip[:i]
	}
	return zip
}
