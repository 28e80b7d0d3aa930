package dataset

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ReadJSON reads an array of flat JSON objects. Column order follows the key
// order of the first object; later objects may add columns. Scalars are
// kept in their textual form and null reads as "".
func ReadJSON(r io.Reader) (*Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return &Frame{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.New("dataset: json input must be an array of objects")
	}

	f := &Frame{}
	seen := map[string]bool{}
	for dec.More() {
		row, keys, err := readObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				f.Columns = append(f.Columns, k)
			}
		}
		f.Rows = append(f.Rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "dataset: read json")
	}
	return f, nil
}

func readObject(dec *json.Decoder) (map[string]string, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset: read json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.Newf("dataset: expected object, got %v", tok)
	}
	row := map[string]string{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, errors.Wrap(err, "dataset: read json")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, errors.Newf("dataset: expected key, got %v", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, nil, errors.Wrap(err, "dataset: read json")
		}
		var val string
		switch v := tok.(type) {
		case string:
			val = v
		case json.Number:
			val = v.String()
		case bool:
			val = strconv.FormatBool(v)
		case nil:
		default:
			return nil, nil, errors.Newf("dataset: nested value for key %q is not supported", key)
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, errors.Wrap(err, "dataset: read json")
	}
	return row, keys, nil
}
