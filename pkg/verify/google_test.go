package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogle(srvURL string) *GoogleClient {
	return NewGoogle("test-key",
		WithGoogleBaseURL(srvURL),
		WithGoogleRateLimit(1000),
	)
}

func TestGoogleValidate_AllConfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req googleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"1600 Pennsylvania Ave NW"}, req.Address.AddressLines)
		assert.Equal(t, "DC", req.Address.AdministrativeArea)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"verdict": {"addressComplete": true},
				"address": {
					"postalAddress": {
						"postalCode": "20500",
						"administrativeArea": "DC",
						"locality": "Washington",
						"addressLines": ["1600 Pennsylvania Ave NW"]
					},
					"addressComponents": [
						{"componentName": {"text": "1600"}, "componentType": "street_number", "confirmationLevel": "CONFIRMED"},
						{"componentName": {"text": "Pennsylvania Ave NW"}, "componentType": "route", "confirmationLevel": "CONFIRMED"}
					]
				},
				"geocode": {
					"location": {"latitude": 38.8977, "longitude": -77.0365},
					"placeId": "ChIJ37HL3ry3t4kRv3YLbdhpWXE"
				},
				"uspsData": {"county": "District of Columbia"}
			}
		}`)
	}))
	defer srv.Close()

	res, err := newTestGoogle(srv.URL).Validate(context.Background(), Address{
		Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC", Zip: "20500",
	})
	require.NoError(t, err)

	assert.True(t, res.AllValid)
	assert.Empty(t, res.Issues)
	assert.InDelta(t, 38.8977, res.Geocode.Latitude, 0.0001)
	assert.InDelta(t, -77.0365, res.Geocode.Longitude, 0.0001)
	assert.Equal(t, "District of Columbia", res.Validated.County)
	assert.Equal(t, "20500", res.Validated.Zip)
}

func TestGoogleValidate_UnconfirmedComponentBecomesIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"verdict": {"addressComplete": true, "hasUnconfirmedComponents": true},
				"address": {
					"postalAddress": {"postalCode": "62701", "administrativeArea": "IL", "locality": "Springfield", "addressLines": ["123 Main St"]},
					"addressComponents": [
						{"componentName": {"text": "123"}, "componentType": "street_number", "confirmationLevel": "CONFIRMED"},
						{"componentName": {"text": "62704"}, "componentType": "postal_code", "confirmationLevel": "UNCONFIRMED_BUT_PLAUSIBLE", "replaced": true}
					]
				},
				"geocode": {"location": {"latitude": 39.7817, "longitude": -89.6501}}
			}
		}`)
	}))
	defer srv.Close()

	res, err := newTestGoogle(srv.URL).Validate(context.Background(), Address{
		Street: "123 Main St", City: "Springfield", State: "IL", Zip: "62701",
	})
	require.NoError(t, err)

	assert.False(t, res.AllValid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "postal_code", res.Issues[0].ComponentType)
	assert.True(t, res.Issues[0].Replaced)
	assert.Equal(t, "62704", res.Suggestions.Zip)
}

func TestGoogleValidate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestGoogle(srv.URL).Validate(context.Background(), Address{Street: "x", City: "y", State: "IL", Zip: "60601"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGoogleValidate_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"code": 400, "message": "Address is missing", "status": "INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(srv.URL).Validate(context.Background(), Address{Street: "x", City: "y", State: "IL", Zip: "60601"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestGoogleValidate_MissingGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"verdict": {"addressComplete": true}, "address": {"postalAddress": {}}, "geocode": {}}}`)
	}))
	defer srv.Close()

	_, err := newTestGoogle(srv.URL).Validate(context.Background(), Address{Street: "x", City: "y", State: "IL", Zip: "60601"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataInvalid)
}
