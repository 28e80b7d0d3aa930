package vector

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParsePoint parses comma-separated coordinates such as "1.5,-2,3e-1".
func ParsePoint(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("vector: empty point")
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "vector: coordinate %d", i)
		}
		out[i] = v
	}
	return out, nil
}
