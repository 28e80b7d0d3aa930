package dbscan

import (
	"math"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/vector"
	"go.uber.org/zap"
)

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithMetric selects the distance metric. Euclidean is the default.
func WithMetric(m vector.Metric) Option {
	return func(c *Clusterer) { c.metric = m }
}

// WithLogger sets the logger used for fit progress. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Clusterer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPredictConcurrency bounds the goroutines PredictBatch may use.
// Values below 1 select GOMAXPROCS.
func WithPredictConcurrency(n int) Option {
	return func(c *Clusterer) { c.concurrency = n }
}

func validate(eps float64, minPts int, metric vector.Metric) error {
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return errors.WithHint(
			errors.Wrapf(ErrInvalidParameter, "eps must be a positive finite number, got %v", eps),
			"eps is the neighbourhood radius; choose it from the scale of your features")
	}
	if minPts <= 0 {
		return errors.WithHint(
			errors.Wrapf(ErrInvalidParameter, "minPts must be positive, got %d", minPts),
			"minPts counts the query point itself, so 1 makes every point a core point")
	}
	if _, err := metric.Func(); err != nil {
		return errors.Mark(err, ErrInvalidParameter)
	}
	return nil
}

func (c *Clusterer) predictWorkers() int {
	if c.concurrency < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return c.concurrency
}
