// Package dbscan implements density-based spatial clustering (DBSCAN) over an
// ordered dataset of fixed-dimension points.
//
// A Clusterer is configured once with a neighbourhood radius (eps) and a
// minimum neighbourhood size (minPts, the query point included). Fit labels
// every point as noise or as a member of a cluster; cluster ids start at 1
// and are assigned in the order their first core point appears in the
// dataset, so a fixed dataset always yields the same numbering.
//
//	c, err := dbscan.New(0.5, 2)
//	res, err := c.Fit(points)
//	label, err := c.Predict([]float64{1.05, 1.05})
//
// Neighbourhoods are found by a linear scan (see index/bruteforce), so a fit
// costs O(n²) distance evaluations.
//
// Predict assigns an unseen point to the cluster of its nearest clustered
// training point within eps, or Noise when there is none. Among training
// points at equal minimal distance the lowest index wins. Predict never
// changes fitted labels.
package dbscan
