package dbscan

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidParameter is returned by New when eps is not a strictly
	// positive finite number, minPts is not strictly positive or the metric
	// is unknown.
	ErrInvalidParameter = errors.New("dbscan: invalid parameter")

	// ErrNotFitted is returned by prediction before any successful Fit.
	ErrNotFitted = errors.New("dbscan: clusterer is not fitted")
)
