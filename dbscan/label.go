package dbscan

import "strconv"

// Label is the per-point clustering state: Unvisited, Noise or a cluster id
// k >= 1.
type Label int

const (
	// Unvisited marks a point not yet reached during Fit. It never survives a
	// completed fit.
	Unvisited Label = 0
	// Noise marks a point reachable from no core point.
	Noise Label = -1
)

// IsNoise reports whether the label is Noise.
func (l Label) IsNoise() bool { return l == Noise }

// IsCluster reports whether the label is a cluster id.
func (l Label) IsCluster() bool { return l > 0 }

func (l Label) String() string {
	switch {
	case l == Noise:
		return "noise"
	case l == Unvisited:
		return "unvisited"
	case l > 0:
		return strconv.Itoa(int(l))
	}
	return "invalid(" + strconv.Itoa(int(l)) + ")"
}
