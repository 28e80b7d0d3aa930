package dbscan

// Result is the outcome of a fit: one label per input point, in input order.
type Result struct {
	// Labels holds Noise or a cluster id for every point.
	Labels []Label
	// Core reports, per point, whether its eps-neighbourhood held at least
	// minPts points.
	Core []bool
	// Clusters is the number of clusters found, equal to the highest id.
	Clusters int
}

// Sizes returns the member count of every cluster; Sizes()[k-1] belongs to
// cluster k.
func (r *Result) Sizes() []int {
	sizes := make([]int, r.Clusters)
	for _, l := range r.Labels {
		if l.IsCluster() && int(l) <= r.Clusters {
			sizes[l-1]++
		}
	}
	return sizes
}

// Members returns the ascending point indices labelled k.
func (r *Result) Members(k Label) []int {
	var out []int
	for i, l := range r.Labels {
		if l == k {
			out = append(out, i)
		}
	}
	return out
}

// Noise returns the ascending indices of noise points.
func (r *Result) Noise() []int { return r.Members(Noise) }

func (r *Result) clone() *Result {
	return &Result{
		Labels:   append([]Label{}, r.Labels...),
		Core:     append([]bool{}, r.Core...),
		Clusters: r.Clusters,
	}
}
