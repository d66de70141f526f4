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

const defaultGoogleBaseURL = "https://addressvalidation.googleapis.com"

// GoogleOption configures the Google adapter.
type GoogleOption func(*GoogleClient)

// WithGoogleBaseURL overrides the default API base URL.
func WithGoogleBaseURL(url string) GoogleOption {
	return func(c *GoogleClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(c *GoogleClient) { c.http = hc }
}

// WithGoogleRateLimit sets the requests-per-second limit for API calls.
func WithGoogleRateLimit(rps float64) GoogleOption {
	return func(c *GoogleClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// GoogleClient is the primary provider, backed by the Google Address
// Validation API.
type GoogleClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewGoogle creates the primary provider adapter.
func NewGoogle(apiKey string, opts ...GoogleOption) *GoogleClient {
	c := &GoogleClient{
		apiKey:  apiKey,
		baseURL: defaultGoogleBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *GoogleClient) Name() string { return "Primary" }

type googleRequest struct {
	Address googlePostalAddress `json:"address"`
}

type googlePostalAddress struct {
	AddressLines       []string `json:"addressLines"`
	Locality           string   `json:"locality,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
}

type googleResponse struct {
	Result struct {
		Verdict struct {
			AddressComplete          bool   `json:"addressComplete"`
			HasUnconfirmedComponents bool   `json:"hasUnconfirmedComponents"`
			HasInferredComponents    bool   `json:"hasInferredComponents"`
			HasReplacedComponents    bool   `json:"hasReplacedComponents"`
			ValidationGranularity    string `json:"validationGranularity"`
		} `json:"verdict"`
		Address struct {
			PostalAddress struct {
				PostalCode         string   `json:"postalCode"`
				AdministrativeArea string   `json:"administrativeArea"`
				Locality           string   `json:"locality"`
				AddressLines       []string `json:"addressLines"`
			} `json:"postalAddress"`
			AddressComponents []googleComponent `json:"addressComponents"`
		} `json:"address"`
		Geocode struct {
			Location struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"location"`
			Bounds *struct {
				Low  struct{ Latitude, Longitude float64 } `json:"low"`
				High struct{ Latitude, Longitude float64 } `json:"high"`
			} `json:"bounds"`
			PlaceID string `json:"placeId"`
		} `json:"geocode"`
		USPSData struct {
			County string `json:"county"`
		} `json:"uspsData"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type googleComponent struct {
	ComponentName struct {
		Text string `json:"text"`
	} `json:"componentName"`
	ComponentType     string `json:"componentType"`
	ConfirmationLevel string `json:"confirmationLevel"`
	Inferred          bool   `json:"inferred"`
	SpellCorrected    bool   `json:"spellCorrected"`
	Replaced          bool   `json:"replaced"`
	Unexpected        bool   `json:"unexpected"`
}

// Validate implements Provider.
func (c *GoogleClient) Validate(ctx context.Context, addr Address) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "verify: google rate limit")
	}

	lines := []string{addr.Street}
	if addr.UnitNumber != "" {
		lines = append(lines, addr.UnitNumber)
	}
	body := googleRequest{Address: googlePostalAddress{
		AddressLines:       lines,
		Locality:           addr.City,
		AdministrativeArea: addr.State,
		PostalCode:         addr.Zip,
	}}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "verify: google marshal request")
	}

	reqURL := c.baseURL + "/v1:validateAddress?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "verify: google build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, "verify: google request: "+err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(ErrUnavailable, "verify: google read body")
	}

	if resp.StatusCode >= 500 {
		return nil, eris.Wrapf(ErrUnavailable, "verify: google returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrRejected, "verify: google returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var gr googleResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, eris.Wrap(err, "verify: google parse response")
	}
	if gr.Error != nil {
		return nil, eris.Wrapf(ErrRejected, "verify: google error %s: %s", gr.Error.Status, gr.Error.Message)
	}

	loc := gr.Result.Geocode.Location
	if loc.Latitude == 0 && loc.Longitude == 0 && gr.Result.Geocode.PlaceID == "" {
		return nil, eris.Wrap(ErrDataInvalid, "verify: google response has no geocode")
	}

	return normalizeGoogle(addr, &gr), nil
}

// normalizeGoogle translates the vendor response into the shared contract.
// Every component not reported CONFIRMED becomes an Issue.
func normalizeGoogle(addr Address, gr *googleResponse) *Result {
	res := &Result{
		Geocode: Geocode{
			Latitude:  gr.Result.Geocode.Location.Latitude,
			Longitude: gr.Result.Geocode.Location.Longitude,
			PlaceID:   gr.Result.Geocode.PlaceID,
		},
	}
	if b := gr.Result.Geocode.Bounds; b != nil {
		res.Geocode.Bounds = &Viewport{
			Low:  LatLng{Latitude: b.Low.Latitude, Longitude: b.Low.Longitude},
			High: LatLng{Latitude: b.High.Latitude, Longitude: b.High.Longitude},
		}
	}

	pa := gr.Result.Address.PostalAddress
	res.Validated = ValidatedAddress{
		Street:     strings.Join(pa.AddressLines, " "),
		UnitNumber: addr.UnitNumber,
		City:       pa.Locality,
		State:      pa.AdministrativeArea,
		Zip:        pa.PostalCode,
		County:     gr.Result.USPSData.County,
	}

	for _, comp := range gr.Result.Address.AddressComponents {
		flagged := comp.ConfirmationLevel != Confirmed ||
			comp.Inferred || comp.SpellCorrected || comp.Replaced || comp.Unexpected
		if !flagged {
			continue
		}
		res.Issues = append(res.Issues, Issue{
			ComponentType:     comp.ComponentType,
			ConfirmationLevel: comp.ConfirmationLevel,
			Inferred:          comp.Inferred,
			SpellCorrected:    comp.SpellCorrected,
			Replaced:          comp.Replaced,
			Unexpected:        comp.Unexpected,
		})
		if comp.SpellCorrected || comp.Replaced {
			switch comp.ComponentType {
			case "route", "street_number", "subpremise":
				res.Suggestions.Street = firstNonEmpty(res.Suggestions.Street, comp.ComponentName.Text)
			case "postal_code":
				res.Suggestions.Zip = comp.ComponentName.Text
			case "administrative_area_level_1":
				res.Suggestions.State = comp.ComponentName.Text
			}
		}
	}

	res.AllValid = gr.Result.Verdict.AddressComplete && len(res.Issues) == 0
	return res
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
