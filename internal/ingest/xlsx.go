package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/AssetVal/HeatMap/internal/batch"
)

// ReadXLSX parses the first sheet of an XLSX workbook into batch inputs. The
// first row is the header.
func ReadXLSX(path string) ([]batch.Input, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %q", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %q has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %q is empty", path)
	}

	return rowsToInputs(rows[0], rows[1:])
}
