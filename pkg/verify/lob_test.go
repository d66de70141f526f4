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

func newTestLob(srvURL string) *LobClient {
	return NewLob("live_key", WithLobBaseURL(srvURL), WithLobRateLimit(1000))
}

func TestLobValidate_Deliverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/us_verifications", r.URL.Path)
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "live_key", user)

		var req lobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Values are upper-cased before submission.
		assert.Equal(t, "185 BERRY ST", req.PrimaryLine)
		assert.Equal(t, "SAN FRANCISCO", req.City)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "us_ver_123",
			"primary_line": "185 BERRY ST",
			"deliverability": "deliverable",
			"components": {
				"city": "SAN FRANCISCO",
				"state": "CA",
				"zip_code": "94107",
				"county": "SAN FRANCISCO",
				"latitude": 37.7749,
				"longitude": -122.4194
			}
		}`)
	}))
	defer srv.Close()

	res, err := newTestLob(srv.URL).Validate(context.Background(), Address{
		Street: "185 Berry St", City: "San Francisco", State: "CA", Zip: "94107",
	})
	require.NoError(t, err)

	assert.True(t, res.AllValid)
	assert.Empty(t, res.Issues)
	assert.Equal(t, "SAN FRANCISCO", res.Validated.County)
	assert.InDelta(t, 37.7749, res.Geocode.Latitude, 0.0001)
}

func TestLobValidate_ZipCorrection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"primary_line": "185 BERRY ST",
			"deliverability": "deliverable",
			"components": {
				"city": "SAN FRANCISCO",
				"state": "CA",
				"zip_code": "94107",
				"county": "SAN FRANCISCO",
				"latitude": 37.7749,
				"longitude": -122.4194
			}
		}`)
	}))
	defer srv.Close()

	// Submitted with the wrong ZIP; Lob corrects it.
	res, err := newTestLob(srv.URL).Validate(context.Background(), Address{
		Street: "185 Berry St", City: "San Francisco", State: "CA", Zip: "94110",
	})
	require.NoError(t, err)

	assert.False(t, res.AllValid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "postal_code", res.Issues[0].ComponentType)
	assert.Equal(t, "94107", res.Suggestions.Zip)
}

func TestLobValidate_Undeliverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"primary_line": "1 FAKE ST",
			"deliverability": "undeliverable",
			"components": {"city": "NOWHERE", "state": "KS", "zip_code": "66002", "latitude": 39.05, "longitude": -95.67}
		}`)
	}))
	defer srv.Close()

	res, err := newTestLob(srv.URL).Validate(context.Background(), Address{
		Street: "1 Fake St", City: "Nowhere", State: "KS", Zip: "66002",
	})
	require.NoError(t, err)

	assert.False(t, res.AllValid)
	found := false
	for _, iss := range res.Issues {
		if iss.ComponentType == "deliverability" {
			found = true
		}
	}
	assert.True(t, found, "expected a deliverability issue")
}

func TestLobValidate_MissingGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"primary_line": "1 FAKE ST", "deliverability": "deliverable", "components": {"city": "X", "state": "KS", "zip_code": "66002"}}`)
	}))
	defer srv.Close()

	_, err := newTestLob(srv.URL).Validate(context.Background(), Address{Street: "1 Fake St", City: "X", State: "KS", Zip: "66002"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataInvalid)
}

func TestLobValidate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestLob(srv.URL).Validate(context.Background(), Address{Street: "x", City: "y", State: "CA", Zip: "94107"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestZip5(t *testing.T) {
	assert.Equal(t, "94107", zip5("94107-1234"))
	assert.Equal(t, "94107", zip5(" 94107 "))
	assert.Equal(t, "", zip5(""))
}
