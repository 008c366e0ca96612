package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"recordnorm/pkg/records"
)

// Table is a decoded CSV file.
type Table struct {
	Columns []string
	Rows    []records.Row
}

// DecodeCSV reads a CSV file with a header row. Cells are kept as strings;
// blank cells become Null. Empty header cells are named col_<n>.
func DecodeCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return Table{}, fmt.Errorf("%w: csv has no header", ErrUnsupportedInput)
	}
	if err != nil {
		return Table{}, fmt.Errorf("parser: read csv header: %w", err)
	}

	cols := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		if _, dup := seen[h]; dup {
			return Table{}, fmt.Errorf("%w: duplicate csv column %q", ErrUnsupportedInput, h)
		}
		seen[h] = struct{}{}
		cols[i] = h
	}

	t := Table{Columns: cols}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parser: csv row %d: %w", line, err)
		}
		row := make(records.Row, len(cols))
		for i, c := range cols {
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				row[c] = records.Null()
				continue
			}
			row[c] = records.String(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
