package region

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile builds an index from a county shapefile on disk. Attribute
// lookups are by field name; counties missing a polygon are skipped.
func LoadShapefile(path string, unit Unit) (*Index, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrDataUnavailable, "region: open shapefile %q: %v", path, err)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, "NAME")
	stateIdx := fieldIndex(reader, "STUSPS")
	geoidIdx := fieldIndex(reader, "GEOID")
	popIdx := fieldIndex(reader, "POP")
	densityIdx := fieldIndex(reader, "DENSITY")
	if nameIdx < 0 {
		return nil, eris.Wrap(ErrDataUnavailable, "region: shapefile has no NAME field")
	}

	var features []Feature
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		g := polygonToMultiPolygon(poly)
		if g == nil {
			continue
		}

		features = append(features, NewFeature(
			strings.TrimSpace(reader.Attribute(nameIdx)),
			attribute(reader, stateIdx),
			attribute(reader, geoidIdx),
			attributeFloat(reader, popIdx),
			attributeFloat(reader, densityIdx),
			g,
		))
	}

	if len(features) == 0 {
		return nil, eris.Wrap(ErrDataUnavailable, "region: shapefile contains no polygons")
	}
	zap.L().Info("county shapefile loaded",
		zap.String("path", path),
		zap.Int("features", len(features)),
	)
	return NewIndex(features, unit), nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon,
// treating each part as a single-ring polygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// fieldIndex returns the index of a named field in the shapefile, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(reader.Attribute(idx))
}

func attributeFloat(reader *shp.Reader, idx int) float64 {
	if idx < 0 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reader.Attribute(idx)), 64)
	if err != nil {
		return 0
	}
	return v
}
