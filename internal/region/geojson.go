package region

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// Load reads the county dataset from a local path or an http(s) URL and
// builds an index. Failures map to ErrDataUnavailable.
func Load(ctx context.Context, source string, unit Unit) (*Index, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrDataUnavailable, "region: read %q: %v", source, err)
	}
	return ParseGeoJSON(data, unit)
}

// ParseGeoJSON builds an index from GeoJSON FeatureCollection bytes.
// Features without a polygon geometry are skipped, not fatal.
func ParseGeoJSON(data []byte, unit Unit) (*Index, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(ErrDataUnavailable, "region: parse geojson: %v", err)
	}

	features := make([]Feature, 0, len(fc.Features))
	skipped := 0
	for _, gf := range fc.Features {
		if gf == nil || gf.Geometry == nil {
			skipped++
			continue
		}
		f := NewFeature(
			propString(gf.Properties, "NAME", "name", "county"),
			propString(gf.Properties, "STUSPS", "state", "STATE"),
			propString(gf.Properties, "GEOID", "fips", "FIPS"),
			propFloat(gf.Properties, "population", "POPULATION", "B01003_001E"),
			propFloat(gf.Properties, "density", "DENSITY"),
			gf.Geometry,
		)
		features = append(features, f)
	}

	if len(features) == 0 {
		return nil, eris.Wrap(ErrDataUnavailable, "region: dataset contains no usable features")
	}
	if skipped > 0 {
		zap.L().Warn("skipped features without geometry", zap.Int("skipped", skipped))
	}
	zap.L().Info("county dataset loaded",
		zap.Int("features", len(features)),
		zap.String("unit", string(unit)),
	)
	return NewIndex(features, unit), nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// propString returns the first non-empty string property among the keys.
func propString(props map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// propFloat returns the first numeric property among the keys. String-encoded
// numbers are accepted since census joins often stringify everything.
func propFloat(props map[string]interface{}, keys ...string) float64 {
	for _, k := range keys {
		v, ok := props[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
