package bruteforce

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/index"
	"github.com/viant/sqlite-dbscan/vector"
)

// Index is a linear-scan radius index. The zero value uses Euclidean distance.
type Index struct {
	// Metric selects the distance function; empty means Euclidean.
	Metric vector.Metric

	points [][]float64
	dim    int
	dist   vector.DistanceFunc
}

// New returns an empty index using the given metric.
func New(metric vector.Metric) *Index {
	return &Index{Metric: metric}
}

// Build copies the points and checks that they share one dimension.
func (i *Index) Build(points [][]float64) error {
	fn, err := i.Metric.Func()
	if err != nil {
		return err
	}
	if len(points) == 0 {
		i.points, i.dim, i.dist = nil, 0, fn
		return nil
	}
	dim := len(points[0])
	copied := make([][]float64, len(points))
	for j, p := range points {
		if len(p) != dim {
			return errors.Wrapf(vector.ErrDimensionMismatch, "bruteforce: point %d has dimension %d, want %d", j, len(p), dim)
		}
		copied[j] = append([]float64(nil), p...)
	}
	i.points, i.dim, i.dist = copied, dim, fn
	return nil
}

// Len returns the number of built points.
func (i *Index) Len() int { return len(i.points) }

// Dim returns the shared dimension of the built points, 0 when empty.
func (i *Index) Dim() int { return i.dim }

// Point returns the coordinates of point j. The slice must not be modified.
func (i *Index) Point(j int) []float64 { return i.points[j] }

// Neighborhood returns every point within eps of point j, j included.
func (i *Index) Neighborhood(j int, eps float64) ([]int, error) {
	if j < 0 || j >= len(i.points) {
		return nil, errors.Wrapf(index.ErrIndexOutOfRange, "bruteforce: %d not in [0,%d)", j, len(i.points))
	}
	q := i.points[j]
	var out []int
	for k, p := range i.points {
		d, err := i.dist(q, p)
		if err != nil {
			return nil, err
		}
		if d <= eps {
			out = append(out, k)
		}
	}
	return out, nil
}

// Within returns every point within eps of query in ascending index order.
func (i *Index) Within(query []float64, eps float64) ([]index.Neighbor, error) {
	if len(i.points) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, errors.Wrapf(vector.ErrDimensionMismatch, "bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	var out []index.Neighbor
	for k, p := range i.points {
		d, err := i.dist(query, p)
		if err != nil {
			return nil, err
		}
		if d <= eps {
			out = append(out, index.Neighbor{Index: k, Distance: d})
		}
	}
	return out, nil
}

// MarshalBinary stores: metricLen(uint32), metric bytes, dim(uint32),
// n(uint32), then n*dim float64 coordinates.
func (i *Index) MarshalBinary() ([]byte, error) {
	metric := string(i.Metric)
	out := make([]byte, 0, 12+len(metric)+8*i.dim*len(i.points))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(metric)))
	out = append(out, metric...)
	out = binary.LittleEndian.AppendUint32(out, uint32(i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(i.points)))
	for _, p := range i.points {
		for _, v := range p {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	off := 0
	getU32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, errors.New("bruteforce: truncated")
		}
		v := binary.LittleEndian.Uint32(data[off:])
		off += 4
		return v, nil
	}
	mlen, err := getU32()
	if err != nil {
		return err
	}
	if off+int(mlen) > len(data) {
		return errors.New("bruteforce: truncated metric")
	}
	metric := vector.Metric(data[off : off+int(mlen)])
	off += int(mlen)
	dim, err := getU32()
	if err != nil {
		return err
	}
	n, err := getU32()
	if err != nil {
		return err
	}
	if uint64(len(data)-off) != uint64(n)*uint64(dim)*8 {
		return errors.Newf("bruteforce: payload holds %d bytes, want %d", len(data)-off, uint64(n)*uint64(dim)*8)
	}
	points := make([][]float64, n)
	for k := range points {
		p := make([]float64, dim)
		for j := range p {
			p[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
		points[k] = p
	}
	i.Metric = metric
	return i.Build(points)
}

var _ index.Index = (*Index)(nil)
