package dataset

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// ReadCSV reads a CSV table whose first record is the header. Blank lines
// are skipped, cells are trimmed and missing trailing cells read as "".
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Frame{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read csv header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	f := &Frame{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "dataset: read csv")
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// WriteCSV writes columns as the header followed by rows.
func WriteCSV(w io.Writer, columns []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return errors.Wrap(err, "dataset: write csv header")
	}
	if err := writer.WriteAll(rows); err != nil {
		return errors.Wrap(err, "dataset: write csv")
	}
	return nil
}
