package index

import "github.com/cockroachdb/errors"

// ErrIndexOutOfRange is returned when a neighbourhood query names a point
// index outside the built dataset.
var ErrIndexOutOfRange = errors.New("index: point index out of range")

// Neighbor is a point reached by a radius query together with its distance
// to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index answers radius queries over an immutable, ordered set of points.
type Index interface {
	// Build loads the points. All points must share one dimension.
	Build(points [][]float64) error

	// Len returns the number of built points.
	Len() int

	// Neighborhood returns, in ascending order, the indices of every built
	// point within eps of point i, i itself included.
	Neighborhood(i int, eps float64) ([]int, error)

	// Within returns, in ascending index order, every built point within
	// eps of query.
	Within(query []float64, eps float64) ([]Neighbor, error)

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}
