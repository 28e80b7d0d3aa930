package dbscan

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-dbscan/vector"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var scenario = [][]float64{{1, 1}, {1.1, 1.1}, {9, 9}, {9.1, 9.1}, {50, 50}}

func fitScenario(t *testing.T) *Clusterer {
	t.Helper()
	c, err := New(0.5, 2)
	require.NoError(t, err)
	_, err = c.Fit(scenario)
	require.NoError(t, err)
	return c
}

func TestFit_Scenario(t *testing.T) {
	c, err := New(0.5, 2)
	require.NoError(t, err)

	res, err := c.Fit(scenario)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Clusters)
	assert.Equal(t, []Label{1, 1, 2, 2, Noise}, res.Labels)
	assert.Equal(t, []bool{true, true, true, true, false}, res.Core)
	assert.Equal(t, []int{2, 2}, res.Sizes())
	assert.Equal(t, []int{2, 3}, res.Members(2))
	assert.Equal(t, []int{4}, res.Noise())

	assert.Equal(t, 2, c.Clusters())
	assert.Equal(t, res.Labels, c.Labels())
}

func TestPredict_Scenario(t *testing.T) {
	c := fitScenario(t)

	l, err := c.Predict([]float64{1.05, 1.05})
	require.NoError(t, err)
	assert.Equal(t, Label(1), l)

	l, err = c.Predict([]float64{9.05, 9.0})
	require.NoError(t, err)
	assert.Equal(t, Label(2), l)

	l, err = c.Predict([]float64{100, 100})
	require.NoError(t, err)
	assert.Equal(t, Noise, l)

	// (50,50) is a noise training point: it never attracts predictions
	l, err = c.Predict([]float64{50, 50})
	require.NoError(t, err)
	assert.Equal(t, Noise, l)
}

func TestPredict_DoesNotChangeLabels(t *testing.T) {
	c := fitScenario(t)
	before := c.Labels()
	for _, p := range [][]float64{{1.05, 1.05}, {50.1, 50.1}, {5, 5}} {
		_, err := c.Predict(p)
		require.NoError(t, err)
	}
	assert.Equal(t, before, c.Labels())
}

func TestFit_NoiseReclassifiedAsBorder(t *testing.T) {
	// Point 0 is visited first and has only 2 points in its neighbourhood, so
	// it starts as noise. Point 1 is core and must absorb it as a border point.
	points := [][]float64{{0, 0}, {0.4, 0}, {0.8, 0}, {10, 10}}
	c, err := New(0.5, 3)
	require.NoError(t, err)

	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clusters)
	assert.Equal(t, []Label{1, 1, 1, Noise}, res.Labels)
	assert.Equal(t, []bool{false, true, false, false}, res.Core)
}

func TestFit_BorderPointsDoNotPropagate(t *testing.T) {
	// Point 1 is the only core point. Point 4 is a border point of its
	// cluster; point 0 lies within eps of point 4 only and must stay noise.
	points := [][]float64{{0.85, 0}, {0, 0}, {-0.4, 0}, {0, 0.4}, {0.4, 0}}
	c, err := New(0.5, 4)
	require.NoError(t, err)

	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clusters)
	assert.Equal(t, []Label{Noise, 1, 1, 1, 1}, res.Labels)
	assert.Equal(t, []bool{false, true, false, false, false}, res.Core)
}

func TestFit_ClusterIDsFollowFirstEncounter(t *testing.T) {
	points := [][]float64{{50, 50}, {9, 9}, {1, 1}, {9.1, 9.1}, {1.1, 1.1}}
	c, err := New(0.5, 2)
	require.NoError(t, err)

	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, []Label{Noise, 1, 2, 1, 2}, res.Labels)
}

func TestFit_MinPtsOne(t *testing.T) {
	points := [][]float64{{0, 0}, {5, 5}, {10, 10}, {15, 15}}
	c, err := New(1, 1)
	require.NoError(t, err)

	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Clusters)
	assert.Equal(t, []Label{1, 2, 3, 4}, res.Labels)
	assert.Empty(t, res.Noise())
}

func TestFit_SmallestRadiusGroupsOnlyCoincidentPoints(t *testing.T) {
	points := [][]float64{{1, 1}, {2, 2}, {1, 1}, {2, 2.0000001}, {3, 3}}
	c, err := New(math.SmallestNonzeroFloat64, 2)
	require.NoError(t, err)

	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clusters)
	assert.Equal(t, []Label{1, Noise, 1, Noise, Noise}, res.Labels)
}

func TestFit_EmptyDataset(t *testing.T) {
	c, err := New(0.5, 2)
	require.NoError(t, err)

	res, err := c.Fit(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Clusters)
	assert.Empty(t, res.Labels)

	l, err := c.Predict([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, Noise, l)
}

func TestFit_DimensionMismatchKeepsPreviousFit(t *testing.T) {
	c := fitScenario(t)

	res, err := c.Fit([][]float64{{1, 1}, {1, 1, 1}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch), "got %v", err)

	assert.Equal(t, []Label{1, 1, 2, 2, Noise}, c.Labels())
}

func TestFit_ReplacesPreviousState(t *testing.T) {
	c := fitScenario(t)

	res, err := c.Fit([][]float64{{0, 0}, {0.1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clusters)
	assert.Equal(t, []Label{1, 1}, c.Labels())
	assert.Len(t, c.Points(), 2)

	l, err := c.Predict([]float64{9, 9})
	require.NoError(t, err)
	assert.Equal(t, Noise, l)
}

func TestFit_ResultIsACopy(t *testing.T) {
	c := fitScenario(t)
	res := c.Result()
	res.Labels[0] = 42
	assert.Equal(t, Label(1), c.Labels()[0])
}

func TestNew_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		eps    float64
		minPts int
		opts   []Option
	}{
		{name: "zero eps", eps: 0, minPts: 2},
		{name: "negative eps", eps: -0.5, minPts: 2},
		{name: "NaN eps", eps: math.NaN(), minPts: 2},
		{name: "infinite eps", eps: math.Inf(1), minPts: 2},
		{name: "zero minPts", eps: 0.5, minPts: 0},
		{name: "negative minPts", eps: 0.5, minPts: -3},
		{name: "unknown metric", eps: 0.5, minPts: 2, opts: []Option{WithMetric("hamming")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.eps, tt.minPts, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestPredict_NotFitted(t *testing.T) {
	c, err := New(0.5, 2)
	require.NoError(t, err)

	_, err = c.Predict([]float64{1, 1})
	assert.True(t, errors.Is(err, ErrNotFitted))

	_, err = c.PredictBatch(context.Background(), [][]float64{{1, 1}})
	assert.True(t, errors.Is(err, ErrNotFitted))
	assert.Nil(t, c.Result())
	assert.Nil(t, c.Labels())
	assert.Equal(t, 0, c.Clusters())
}

func TestPredict_DimensionMismatch(t *testing.T) {
	c := fitScenario(t)
	_, err := c.Predict([]float64{1, 1, 1})
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch))
}

func TestPredict_EqualDistanceTieFavoursLowestIndex(t *testing.T) {
	points := [][]float64{{1, 0}, {1.3, 0}, {0, 0}, {-0.3, 0}}
	c, err := New(0.5, 2)
	require.NoError(t, err)
	res, err := c.Fit(points)
	require.NoError(t, err)
	require.Equal(t, []Label{1, 1, 2, 2}, res.Labels)

	l, err := c.Predict([]float64{0.5, 0})
	require.NoError(t, err)
	assert.Equal(t, Label(1), l)
}

func TestPredict_NearestClusterWins(t *testing.T) {
	points := [][]float64{{1, 0}, {1.3, 0}, {0, 0}, {-0.3, 0}}
	c, err := New(0.5, 2)
	require.NoError(t, err)
	_, err = c.Fit(points)
	require.NoError(t, err)

	l, err := c.Predict([]float64{0.45, 0})
	require.NoError(t, err)
	assert.Equal(t, Label(2), l)
}

func TestPredictBatch(t *testing.T) {
	c, err := New(0.5, 2, WithPredictConcurrency(2))
	require.NoError(t, err)
	_, err = c.Fit(scenario)
	require.NoError(t, err)

	queries := [][]float64{{1.05, 1.05}, {100, 100}, {9.05, 9.05}, {1, 1}, {50, 50}}
	got, err := c.PredictBatch(context.Background(), queries)
	require.NoError(t, err)
	assert.Equal(t, []Label{1, Noise, 2, 1, Noise}, got)

	_, err = c.PredictBatch(context.Background(), [][]float64{{1, 1}, {1}})
	assert.True(t, errors.Is(err, vector.ErrDimensionMismatch))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.PredictBatch(ctx, queries)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredict_Concurrent(t *testing.T) {
	c := fitScenario(t)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l, err := c.Predict([]float64{1.05, 1.05})
				if !assert.NoError(t, err) || !assert.Equal(t, Label(1), l) {
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRestore(t *testing.T) {
	src := fitScenario(t)

	dst, err := New(0.5, 2)
	require.NoError(t, err)
	require.NoError(t, dst.Restore(src.Points(), src.Result()))
	assert.Equal(t, src.Labels(), dst.Labels())
	assert.Equal(t, 2, dst.Clusters())

	l, err := dst.Predict([]float64{1.05, 1.05})
	require.NoError(t, err)
	assert.Equal(t, Label(1), l)

	bad := []*Result{
		nil,
		{Labels: []Label{1}, Clusters: 1},
		{Labels: []Label{1, 1, 0, 2, Noise}, Clusters: 2},
		{Labels: []Label{1, 1, 2, 2, -7}, Clusters: 2},
		{Labels: []Label{1, 1, 2, 2, Noise}, Clusters: 3},
	}
	for i, r := range bad {
		assert.Error(t, dst.Restore(scenario, r), "case %d", i)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	src := fitScenario(t)
	data, err := src.Snapshot()
	require.NoError(t, err)

	dst, err := New(0.5, 2)
	require.NoError(t, err)
	require.NoError(t, dst.RestoreSnapshot(data, src.Result()))
	assert.Equal(t, src.Points(), dst.Points())
	assert.Equal(t, src.Result(), dst.Result())

	l, err := dst.Predict([]float64{9.05, 9.05})
	require.NoError(t, err)
	assert.Equal(t, Label(2), l)

	cosine, err := New(0.5, 2, WithMetric(vector.MetricCosine))
	require.NoError(t, err)
	assert.Error(t, cosine.RestoreSnapshot(data, src.Result()))
	assert.Error(t, dst.RestoreSnapshot(data[:len(data)-1], src.Result()))
	assert.Error(t, dst.RestoreSnapshot(data, &Result{Labels: []Label{1}, Clusters: 1}))

	unfitted, err := New(0.5, 2)
	require.NoError(t, err)
	_, err = unfitted.Snapshot()
	assert.True(t, errors.Is(err, ErrNotFitted))
}

func TestFit_LogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(0.5, 2, WithLogger(zap.New(core)))
	require.NoError(t, err)
	_, err = c.Fit(scenario)
	require.NoError(t, err)

	finished := logs.FilterMessage("dbscan fit finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.EqualValues(t, 2, fields["clusters"])
	assert.EqualValues(t, 1, fields["noise"])
	assert.Equal(t, 1, logs.FilterMessage("dbscan fit started").Len())
}

func TestFit_CosineMetric(t *testing.T) {
	points := [][]float64{{1, 0}, {2, 0.01}, {0, 1}, {0.01, 3}, {-1, -1}}
	c, err := New(0.01, 2, WithMetric(vector.MetricCosine))
	require.NoError(t, err)
	res, err := c.Fit(points)
	require.NoError(t, err)
	assert.Equal(t, []Label{1, 1, 2, 2, Noise}, res.Labels)
}

func TestFit_CosineMetricWithOrigin(t *testing.T) {
	c, err := New(0.1, 2, WithMetric(vector.MetricCosine))
	require.NoError(t, err)
	res, err := c.Fit([][]float64{{1, 1}, {0, 0}, {1, 1.01}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []Label{1, 2, 1, 2}, res.Labels)

	l, err := c.Predict([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, Label(2), l)
	l, err = c.Predict([]float64{2, 2.01})
	require.NoError(t, err)
	assert.Equal(t, Label(1), l)
}

func TestLabel_String(t *testing.T) {
	assert.Equal(t, "noise", Noise.String())
	assert.Equal(t, "unvisited", Unvisited.String())
	assert.Equal(t, "3", Label(3).String())
	assert.Equal(t, "invalid(-4)", Label(-4).String())
	assert.True(t, Noise.IsNoise())
	assert.True(t, Label(2).IsCluster())
	assert.False(t, Noise.IsCluster())
}

// blobs returns three dense groups plus sparse background points.
func blobs(seed uint64) [][]float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	centers := [][]float64{{0, 0}, {5, 5}, {-5, 5}}
	var out [][]float64
	for i := 0; i < 150; i++ {
		c := centers[i%len(centers)]
		out = append(out, []float64{c[0] + r.NormFloat64()*0.4, c[1] + r.NormFloat64()*0.4})
	}
	for i := 0; i < 30; i++ {
		out = append(out, []float64{r.Float64()*30 - 15, r.Float64()*30 - 15})
	}
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestFit_Properties(t *testing.T) {
	const eps, minPts = 0.6, 4
	for _, seed := range []uint64{1, 7, 42} {
		points := blobs(seed)
		c, err := New(eps, minPts)
		require.NoError(t, err)
		res, err := c.Fit(points)
		require.NoError(t, err)

		again, err := c.Fit(points)
		require.NoError(t, err)
		assert.Equal(t, res, again, "fit must be deterministic")
		assert.GreaterOrEqual(t, res.Clusters, 3)

		maxLabel := 0
		for i, l := range res.Labels {
			require.NotEqual(t, Unvisited, l, "point %d left unvisited", i)
			if int(l) > maxLabel {
				maxLabel = int(l)
			}

			var neighbors []int
			for j := range points {
				d, err := vector.L2Distance(points[i], points[j])
				require.NoError(t, err)
				if d <= eps {
					neighbors = append(neighbors, j)
				}
			}
			assert.Equal(t, len(neighbors) >= minPts, res.Core[i], "core flag of %d", i)

			if res.Core[i] {
				for _, j := range neighbors {
					assert.True(t, res.Labels[j].IsCluster(), "neighbour %d of core %d is noise", j, i)
					if res.Core[j] {
						assert.Equal(t, l, res.Labels[j], "core neighbours %d and %d split", i, j)
					}
				}
			}
			if l.IsCluster() && !res.Core[i] {
				reachable := false
				for _, j := range neighbors {
					if res.Core[j] && res.Labels[j] == l {
						reachable = true
						break
					}
				}
				assert.True(t, reachable, "border point %d has no core neighbour in cluster %d", i, l)
			}
			if l.IsCluster() {
				got, err := c.Predict(points[i])
				require.NoError(t, err)
				assert.Equal(t, l, got, "predict on training point %d", i)
			}
		}
		assert.Equal(t, maxLabel, res.Clusters)
	}
}
