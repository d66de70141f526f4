package ingest

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/AssetVal/HeatMap/internal/batch"
)

// ReadCSV parses a CSV file into batch inputs. The first row is the header.
func ReadCSV(path string) ([]batch.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %q", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse csv %q", path)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %q is empty", path)
	}

	return rowsToInputs(rows[0], rows[1:])
}
