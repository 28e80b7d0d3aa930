package vector

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/viant/vec/search"
)

// ErrDimensionMismatch is returned when two compared vectors differ in length.
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

// DistanceFunc computes the dissimilarity between two vectors of equal length.
type DistanceFunc func(a, b []float64) (float64, error)

// Metric names a supported distance function.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ParseMetric resolves a metric name. Empty input selects MetricEuclidean;
// "l2" is accepted as an alias.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "l2", "euclidean":
		return MetricEuclidean, nil
	case "cos", "cosine":
		return MetricCosine, nil
	}
	return "", errors.Newf("vector: unsupported metric %q", name)
}

// Func returns the distance implementation for the metric.
func (m Metric) Func() (DistanceFunc, error) {
	switch m {
	case MetricEuclidean, "":
		return L2Distance, nil
	case MetricCosine:
		return CosineDistance, nil
	}
	return nil, errors.Newf("vector: unsupported metric %q", string(m))
}

// CosineDistance returns 1 - cosine similarity computed in float32 with the
// viant/vec kernel. A zero-magnitude operand is at distance 1 from any
// non-zero vector and at distance 0 from another zero vector.
func CosineDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Wrapf(ErrDimensionMismatch, "cosine distance: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("vector: cosine distance on empty vectors")
	}
	va, vb := toFloat32(a), toFloat32(b)
	za, zb := isZero(va), isZero(vb)
	if za && zb {
		return 0, nil
	}
	if za || zb {
		return 1, nil
	}
	return float64(search.Float32s(va).CosineDistance(vb)), nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Wrapf(ErrDimensionMismatch, "L2 distance: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
