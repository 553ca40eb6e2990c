package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ReadCSV loads a table from a CSV file. The first record is the
// header. Cells that parse as numbers become float64, empty cells
// become null, everything else stays a string.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()
	return readCSV(f)
}

func readCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("CSV has no header row")
	}

	header := records[0]
	data := make(map[string][]any, len(header))
	for _, col := range header {
		data[col] = make([]any, 0, len(records)-1)
	}

	for _, rec := range records[1:] {
		for i, col := range header {
			var cell any
			if i < len(rec) && rec[i] != "" {
				if f, err := strconv.ParseFloat(rec[i], 64); err == nil {
					cell = f
				} else {
					cell = rec[i]
				}
			}
			data[col] = append(data[col], cell)
		}
	}

	return New(header, data)
}

// WriteCSV writes the table to a CSV file. Nulls become empty cells.
func WriteCSV(t Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV: %w", err)
	}
	defer f.Close()
	return writeCSV(t, f)
}

func writeCSV(t Table, w io.Writer) error {
	cw := csv.NewWriter(w)

	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, col := range cols {
			vals, _ := t.Column(col)
			if vals[i] == nil {
				row[j] = ""
			} else {
				row[j] = CastString(vals[i])
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
