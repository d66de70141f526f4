// Package ingest converts spreadsheet and CSV files of raw address rows into
// batch inputs. Column mapping is header-driven so callers do not need a
// fixed layout.
package ingest

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/internal/batch"
	"github.com/AssetVal/HeatMap/pkg/verify"
)

// ErrUnsupportedFormat indicates the file extension is not handled.
var ErrUnsupportedFormat = eris.New("ingest: unsupported file format")

// headerAliases maps canonical column names to accepted header spellings.
var headerAliases = map[string][]string{
	"street": {"street", "address", "address1", "street address", "addr"},
	"unit":   {"unit", "unitnumber", "unit number", "apt", "suite", "address2"},
	"city":   {"city", "town"},
	"state":  {"state", "st", "province"},
	"zip":    {"zip", "zipcode", "zip code", "postal", "postal code"},
	"lat":    {"lat", "latitude"},
	"lng":    {"lng", "lon", "long", "longitude"},
}

// ReadFile parses a CSV or XLSX file into batch inputs, dispatching on the
// file extension.
func ReadFile(path string) ([]batch.Input, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "ingest: %q", path)
	}
}

// columnMap resolves header cells to canonical column indices.
type columnMap map[string]int

func mapHeader(header []string) columnMap {
	cm := columnMap{}
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for canonical, aliases := range headerAliases {
			if _, taken := cm[canonical]; taken {
				continue
			}
			for _, alias := range aliases {
				if normalized == alias {
					cm[canonical] = i
					break
				}
			}
		}
	}
	return cm
}

func (cm columnMap) get(row []string, key string) string {
	idx, ok := cm[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// rowsToInputs converts data rows into batch inputs using the header map.
// Rows with no street are skipped; a row with both latitude and longitude
// carries its coordinate through.
func rowsToInputs(header []string, rows [][]string) ([]batch.Input, error) {
	cm := mapHeader(header)
	if _, ok := cm["street"]; !ok {
		return nil, eris.Errorf("ingest: no street/address column found in header %v", header)
	}

	inputs := make([]batch.Input, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		street := cm.get(row, "street")
		if street == "" {
			skipped++
			continue
		}
		in := batch.Input{
			Address: verify.Address{
				Street:     street,
				UnitNumber: cm.get(row, "unit"),
				City:       cm.get(row, "city"),
				State:      strings.ToUpper(cm.get(row, "state")),
				Zip:        cm.get(row, "zip"),
			},
		}
		if lat, lng, ok := parseCoordinates(cm.get(row, "lat"), cm.get(row, "lng")); ok {
			in.Latitude = &lat
			in.Longitude = &lng
		}
		inputs = append(inputs, in)
	}

	if skipped > 0 {
		zap.L().Warn("skipped rows without a street", zap.Int("skipped", skipped))
	}
	return inputs, nil
}

// parseCoordinates accepts a coordinate pair only when both values parse and
// at least one is non-zero.
func parseCoordinates(latStr, lngStr string) (float64, float64, bool) {
	if latStr == "" || lngStr == "" {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, false
	}
	if lat == 0 && lng == 0 {
		return 0, 0, false
	}
	return lat, lng, true
}
