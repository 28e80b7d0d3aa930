package vector

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// EncodePoint encodes point coordinates into a BLOB representation suitable
// for storage in SQLite: a little-endian sequence of IEEE 754 float64 values
// without a length prefix. The dimension is derived from the BLOB size on
// decode.
func EncodePoint(p []float64) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b := make([]byte, len(p)*8)
	for i, v := range p {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b, nil
}

// DecodePoint decodes a BLOB produced by EncodePoint.
func DecodePoint(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, errors.Newf("vector: invalid point blob length %d (not multiple of 8)", len(b))
	}
	n := len(b) / 8
	p := make([]float64, n)
	for i := 0; i < n; i++ {
		p[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return p, nil
}
