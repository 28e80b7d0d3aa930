// Package vector defines the point representation shared by this module and
// the primitives that operate on it. It includes:
//   - Euclidean and cosine distance functions with dimension checks
//   - Metric names resolvable to a DistanceFunc
//   - Point encoding (BLOB) for SQLite storage
package vector
