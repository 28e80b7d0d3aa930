package dbscan

import "github.com/viant/sqlite-dbscan/index"

// fitter owns the label array for the duration of one fit.
type fitter struct {
	idx    index.Index
	eps    float64
	minPts int
	labels []Label
	core   []bool
}

func newFitter(idx index.Index, eps float64, minPts int) *fitter {
	return &fitter{
		idx:    idx,
		eps:    eps,
		minPts: minPts,
		labels: make([]Label, idx.Len()),
		core:   make([]bool, idx.Len()),
	}
}

// run visits points in ascending order and returns the cluster count.
func (f *fitter) run() (int, error) {
	clusters := 0
	for i := range f.labels {
		if f.labels[i] != Unvisited {
			continue
		}
		neighbors, err := f.idx.Neighborhood(i, f.eps)
		if err != nil {
			return 0, err
		}
		if len(neighbors) < f.minPts {
			// provisional: a later core point may absorb it as a border point
			f.labels[i] = Noise
			continue
		}
		clusters++
		k := Label(clusters)
		f.labels[i] = k
		f.core[i] = true
		if err := f.expand(neighbors, k); err != nil {
			return 0, err
		}
	}
	return clusters, nil
}

// expand absorbs every point density-reachable from the seed into cluster k,
// breadth first.
func (f *fitter) expand(seed []int, k Label) error {
	queue := append(make([]int, 0, len(seed)), seed...)
	for head := 0; head < len(queue); head++ {
		j := queue[head]
		switch f.labels[j] {
		case Noise:
			// border point: joins k but does not propagate membership
			f.labels[j] = k
		case Unvisited:
			f.labels[j] = k
			neighbors, err := f.idx.Neighborhood(j, f.eps)
			if err != nil {
				return err
			}
			if len(neighbors) < f.minPts {
				continue
			}
			f.core[j] = true
			for _, n := range neighbors {
				// already clustered points would be no-ops when popped
				if !f.labels[n].IsCluster() {
					queue = append(queue, n)
				}
			}
		}
	}
	return nil
}
