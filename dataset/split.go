package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
)

// Split holds the two partitions of a dataset. YTrain and YTest stay empty
// when no targets were supplied.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest [][]float64
}

// TrainTestSplit shuffles row indices with r and moves max(1, n*testSize)
// rows to the test partition. y may be empty; otherwise it must have one
// entry per row of x. Empty input yields an empty split.
func TrainTestSplit(x, y [][]float64, testSize float64, r *rand.Rand) (*Split, error) {
	if testSize < 0 || testSize > 1 || math.IsNaN(testSize) {
		return nil, errors.Newf("dataset: test size %v not in [0,1]", testSize)
	}
	if len(y) != 0 && len(y) != len(x) {
		return nil, errors.Newf("dataset: %d targets for %d rows", len(y), len(x))
	}
	s := &Split{XTrain: [][]float64{}, XTest: [][]float64{}, YTrain: [][]float64{}, YTest: [][]float64{}}
	total := len(x)
	if total == 0 {
		return s, nil
	}
	if r == nil {
		return nil, errors.New("dataset: nil random source")
	}
	testCount := max(1, int(float64(total)*testSize))
	for i, id := range r.Perm(total) {
		if i < testCount {
			s.XTest = append(s.XTest, x[id])
			if len(y) > 0 {
				s.YTest = append(s.YTest, y[id])
			}
			continue
		}
		s.XTrain = append(s.XTrain, x[id])
		if len(y) > 0 {
			s.YTrain = append(s.YTrain, y[id])
		}
	}
	return s, nil
}
