package dbscan

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/index/bruteforce"
	"github.com/viant/sqlite-dbscan/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Clusterer fits DBSCAN clusterings and classifies unseen points against the
// last fit. Fit is exclusive; Predict and the accessors may run concurrently
// with each other once a fit has completed.
type Clusterer struct {
	eps         float64
	minPts      int
	metric      vector.Metric
	logger      *zap.Logger
	concurrency int

	mu     sync.RWMutex
	index  *bruteforce.Index
	result *Result
}

// New returns a Clusterer for the given radius and minimum neighbourhood
// size. It fails with ErrInvalidParameter when eps <= 0 (or is not finite),
// minPts <= 0 or the metric is unknown.
func New(eps float64, minPts int, opts ...Option) (*Clusterer, error) {
	c := &Clusterer{
		eps:    eps,
		minPts: minPts,
		metric: vector.MetricEuclidean,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := validate(c.eps, c.minPts, c.metric); err != nil {
		return nil, err
	}
	return c, nil
}

// Eps returns the neighbourhood radius.
func (c *Clusterer) Eps() float64 { return c.eps }

// MinPts returns the minimum neighbourhood size.
func (c *Clusterer) MinPts() int { return c.minPts }

// Metric returns the distance metric.
func (c *Clusterer) Metric() vector.Metric { return c.metric }

// Fit clusters points, replacing any previous fit. Every point must have the
// dimension of the first one, otherwise vector.ErrDimensionMismatch is
// returned and the previous fit is left untouched. An empty dataset yields
// zero clusters and no labels.
func (c *Clusterer) Fit(points [][]float64) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()
	idx := bruteforce.New(c.metric)
	if err := idx.Build(points); err != nil {
		return nil, errors.Wrap(err, "dbscan: fit")
	}
	c.logger.Debug("dbscan fit started",
		zap.Int("points", idx.Len()),
		zap.Int("dimension", idx.Dim()),
		zap.Float64("eps", c.eps),
		zap.Int("min_pts", c.minPts),
		zap.String("metric", string(c.metric)),
	)

	f := newFitter(idx, c.eps, c.minPts)
	clusters, err := f.run()
	if err != nil {
		return nil, errors.Wrap(err, "dbscan: fit")
	}
	result := &Result{Labels: f.labels, Core: f.core, Clusters: clusters}
	c.index, c.result = idx, result

	c.logger.Info("dbscan fit finished",
		zap.Int("points", idx.Len()),
		zap.Int("clusters", clusters),
		zap.Int("noise", len(result.Noise())),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result.clone(), nil
}

// Restore installs a previously computed fit, for example one loaded from a
// store, without re-running the clustering. The result must carry one
// non-Unvisited label per point.
func (c *Clusterer) Restore(points [][]float64, result *Result) error {
	restored, err := checkResult(len(points), result)
	if err != nil {
		return err
	}
	idx := bruteforce.New(c.metric)
	if err := idx.Build(points); err != nil {
		return errors.Wrap(err, "dbscan: restore")
	}
	c.install(idx, restored)
	return nil
}

// Snapshot serializes the fitted points together with the metric. The bytes
// can be handed to RestoreSnapshot with the matching Result.
func (c *Clusterer) Snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.index == nil {
		return nil, ErrNotFitted
	}
	return c.index.MarshalBinary()
}

// RestoreSnapshot is Restore for points captured with Snapshot. The
// snapshot metric must match the Clusterer's.
func (c *Clusterer) RestoreSnapshot(data []byte, result *Result) error {
	idx := &bruteforce.Index{}
	if err := idx.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "dbscan: restore snapshot")
	}
	if idx.Metric != c.metric {
		return errors.Newf("dbscan: restore snapshot: metric %q, clusterer uses %q", idx.Metric, c.metric)
	}
	restored, err := checkResult(idx.Len(), result)
	if err != nil {
		return err
	}
	c.install(idx, restored)
	return nil
}

func (c *Clusterer) install(idx *bruteforce.Index, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index, c.result = idx, result
}

func checkResult(n int, result *Result) (*Result, error) {
	if result == nil {
		return nil, errors.New("dbscan: restore: nil result")
	}
	if len(result.Labels) != n {
		return nil, errors.Newf("dbscan: restore: %d labels for %d points", len(result.Labels), n)
	}
	highest := 0
	for i, l := range result.Labels {
		if l == Unvisited || (l < 0 && l != Noise) {
			return nil, errors.Newf("dbscan: restore: point %d has label %v", i, l)
		}
		if int(l) > highest {
			highest = int(l)
		}
	}
	if highest != result.Clusters {
		return nil, errors.Newf("dbscan: restore: highest label %d != cluster count %d", highest, result.Clusters)
	}
	restored := result.clone()
	if len(restored.Core) != n {
		restored.Core = make([]bool, n)
	}
	return restored, nil
}

// Result returns a copy of the last fit, or nil before the first Fit.
func (c *Clusterer) Result() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil
	}
	return c.result.clone()
}

// Labels returns a copy of the fitted labels.
func (c *Clusterer) Labels() []Label {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil
	}
	return append([]Label{}, c.result.Labels...)
}

// Clusters returns the cluster count of the last fit.
func (c *Clusterer) Clusters() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return 0
	}
	return c.result.Clusters
}

// Points returns a copy of the fitted dataset.
func (c *Clusterer) Points() [][]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.index == nil {
		return nil
	}
	out := make([][]float64, c.index.Len())
	for i := range out {
		out[i] = append([]float64(nil), c.index.Point(i)...)
	}
	return out
}

// Predict returns the cluster of the nearest clustered training point within
// eps of point, or Noise when there is none. Ties at equal distance resolve
// to the lowest training index.
func (c *Clusterer) Predict(point []float64) (Label, error) {
	idx, result, err := c.snapshot()
	if err != nil {
		return Noise, err
	}
	return c.predict(idx, result, point)
}

// PredictBatch predicts every point, fanning out over at most the configured
// number of goroutines. The returned labels follow the input order.
func (c *Clusterer) PredictBatch(ctx context.Context, points [][]float64) ([]Label, error) {
	idx, result, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]Label, len(points))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.predictWorkers())
	for i, p := range points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := c.predict(idx, result, p)
			if err != nil {
				return errors.Wrapf(err, "dbscan: predict point %d", i)
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// snapshot captures the fitted state. Fit replaces rather than mutates it,
// so the captured values stay valid after the lock is released.
func (c *Clusterer) snapshot() (*bruteforce.Index, *Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil, nil, ErrNotFitted
	}
	return c.index, c.result, nil
}

func (c *Clusterer) predict(idx *bruteforce.Index, result *Result, point []float64) (Label, error) {
	neighbors, err := idx.Within(point, c.eps)
	if err != nil {
		return Noise, err
	}
	best, minDist := Noise, math.Inf(1)
	for _, n := range neighbors {
		l := result.Labels[n.Index]
		if l.IsCluster() && n.Distance < minDist {
			best, minDist = l, n.Distance
		}
	}
	return best, nil
}
