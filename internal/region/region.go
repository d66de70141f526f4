// Package region holds the county reference dataset and answers
// point-in-polygon queries against it. Densities are stored in people per
// square kilometer and converted on read when imperial units are requested.
package region

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrDataUnavailable indicates the reference dataset could not be loaded.
var ErrDataUnavailable = eris.New("region: reference dataset unavailable")

// SquareKmPerSquareMile converts densities between metric and imperial.
const SquareKmPerSquareMile = 2.59

// Unit selects the density denominator.
type Unit string

const (
	UnitKm2 Unit = "km2"
	UnitMi2 Unit = "mi2"
)

// ParseUnit maps a config string to a Unit, defaulting to metric.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mi2", "mi", "sqmi", "imperial":
		return UnitMi2
	default:
		return UnitKm2
	}
}

// maxDensity caps implausible density values coming out of dataset joins.
// Nothing on earth exceeds this in people per square kilometer.
const maxDensity = 1e6

// Feature is one county polygon with its census attributes.
type Feature struct {
	Name       string
	State      string
	FIPS       string
	Population float64
	// Density is people per square kilometer, already normalized.
	Density  float64
	geometry geom.T
}

// Geometry returns the feature's polygon or multipolygon.
func (f *Feature) Geometry() geom.T { return f.geometry }

// NewFeature builds a Feature, normalizing the density value.
func NewFeature(name, state, fips string, population, density float64, geometry geom.T) Feature {
	return Feature{
		Name:       name,
		State:      state,
		FIPS:       fips,
		Population: population,
		Density:    normalizeDensity(density),
		geometry:   geometry,
	}
}

// normalizeDensity clamps a raw density into [0, maxDensity]. NaN, infinite,
// and negative values collapse to 0.
func normalizeDensity(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	if d > maxDensity {
		return maxDensity
	}
	return d
}

// Index is an in-memory set of county features supporting containment
// lookups. It is immutable after construction and safe for concurrent reads.
type Index struct {
	features []Feature
	unit     Unit
}

// NewIndex builds an index over the given features.
func NewIndex(features []Feature, unit Unit) *Index {
	return &Index{features: features, unit: unit}
}

// Len reports the number of indexed features.
func (ix *Index) Len() int { return len(ix.features) }

// Unit reports the density unit this index converts to on lookup.
func (ix *Index) Unit() Unit { return ix.unit }

// FindContaining returns the first feature whose polygon contains the
// coordinate, or nil when no feature matches. Holes are honored: a point
// inside an interior ring is outside the polygon.
func (ix *Index) FindContaining(lat, lng float64) *Feature {
	coord := geom.Coord{lng, lat}
	for i := range ix.features {
		if geometryContains(ix.features[i].geometry, coord) {
			return &ix.features[i]
		}
	}
	return nil
}

// DensityAt returns the density at a coordinate in the index's unit, or
// (0, false) when the coordinate falls outside every feature.
func (ix *Index) DensityAt(lat, lng float64) (float64, bool) {
	f := ix.FindContaining(lat, lng)
	if f == nil {
		return 0, false
	}
	return ConvertDensity(f.Density, ix.unit), true
}

// ConvertDensity converts a people-per-km² density to the requested unit.
func ConvertDensity(perKm2 float64, unit Unit) float64 {
	if unit == UnitMi2 {
		return perKm2 * SquareKmPerSquareMile
	}
	return perKm2
}

func geometryContains(g geom.T, coord geom.Coord) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, coord)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), coord) {
				return true
			}
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, coord geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), coord, p.LinearRing(0).FlatCoords()) {
		return false
	}
	// Interior rings are holes.
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), coord, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
