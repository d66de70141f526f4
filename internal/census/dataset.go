package census

import (
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// kmPerDegree approximates one degree of arc at the equator. Squaring it
// converts polygon areas from square degrees to square kilometers.
const kmPerDegree = 111.0

// BuildDataset joins ACS county populations onto a boundary GeoJSON file and
// writes the enriched collection to outPath. Each output feature gains
// population, area_km2, and density (people per km²) properties.
func BuildDataset(ctx context.Context, client *Client, boundaryPath, outPath string, year int) error {
	var (
		fc         geojson.FeatureCollection
		population map[string]float64
	)

	// The boundary file is large; parse it while the API round-trip runs.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := os.ReadFile(boundaryPath)
		if err != nil {
			return eris.Wrapf(err, "census: read boundary file %q", boundaryPath)
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return eris.Wrap(err, "census: parse boundary geojson")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		population, err = client.FetchCountyPopulation(gctx, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	enriched := EnrichFeatures(fc.Features, population)
	zap.L().Info("county dataset built",
		zap.Int("features", len(fc.Features)),
		zap.Int("matched", enriched),
		zap.Int("year", year),
	)

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "census: encode output geojson")
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "census: write %q", outPath)
	}
	return nil
}

// EnrichFeatures joins populations onto boundary features by FIPS and
// computes area and density in place. It returns the number of features that
// matched a population row; unmatched features get population 0.
func EnrichFeatures(features []*geojson.Feature, population map[string]float64) int {
	matched := 0
	for _, f := range features {
		if f == nil || f.Properties == nil {
			continue
		}
		fips := featureFIPS(f.Properties)
		pop, ok := population[fips]
		if ok {
			matched++
		}

		areaKm2 := areaSquareDegrees(f.Geometry) * kmPerDegree * kmPerDegree
		density := 0.0
		if areaKm2 > 0 {
			density = pop / areaKm2
		}

		f.Properties["population"] = pop
		f.Properties["area_km2"] = areaKm2
		f.Properties["density"] = density
	}
	return matched
}

// featureFIPS derives the 5-digit county FIPS from boundary properties,
// preferring the combined GEOID over STATEFP+COUNTYFP.
func featureFIPS(props map[string]interface{}) string {
	if geoid, ok := props["GEOID"].(string); ok && geoid != "" {
		return geoid
	}
	state, _ := props["STATEFP"].(string)
	county, _ := props["COUNTYFP"].(string)
	return state + county
}

func areaSquareDegrees(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return math.Abs(t.Area())
	case *geom.MultiPolygon:
		return math.Abs(t.Area())
	default:
		return 0
	}
}
