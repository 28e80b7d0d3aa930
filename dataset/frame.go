package dataset

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Frame is a table of string cells keyed by column name. Columns keeps the
// source order, which is also the feature order used by Extract.
type Frame struct {
	Columns []string
	Rows    []map[string]string
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// ReadFile loads a .csv or .json file, picking the reader by extension.
func ReadFile(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSVFile(path)
	case ".json":
		return ReadJSONFile(path)
	}
	return nil, errors.Newf("dataset: unsupported file type %q", filepath.Ext(path))
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	return readWith(path, ReadCSV)
}

// ReadJSONFile opens path and reads it with ReadJSON.
func ReadJSONFile(path string) (*Frame, error) {
	return readWith(path, ReadJSON)
}

func readWith(path string, read func(io.Reader) (*Frame, error)) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer file.Close()
	return read(file)
}

// Extract converts rows to feature vectors in column order. When supervised
// is set, the last column is returned separately as a one-element target
// vector per row. Empty or unparseable cells become 0.
func Extract(f *Frame, supervised bool) (x, y [][]float64) {
	if f == nil || len(f.Rows) == 0 {
		return [][]float64{}, [][]float64{}
	}
	features := f.Columns
	var target string
	if supervised && len(features) > 0 {
		target = features[len(features)-1]
		features = features[:len(features)-1]
	}
	x = make([][]float64, 0, len(f.Rows))
	y = make([][]float64, 0, len(f.Rows))
	for _, row := range f.Rows {
		vec := make([]float64, len(features))
		for i, col := range features {
			vec[i] = parseFloat(row[col])
		}
		x = append(x, vec)
		if supervised {
			y = append(y, []float64{parseFloat(row[target])})
		}
	}
	return x, y
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
