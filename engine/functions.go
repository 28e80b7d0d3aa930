package engine

import (
	"database/sql/driver"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/vector"
	sqlite "modernc.org/sqlite"
)

const (
	// L2Function is the SQL name of the Euclidean distance function.
	L2Function = "dbscan_l2"
	// CosineFunction is the SQL name of the cosine distance function.
	CosineFunction = "dbscan_cosine"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterDistanceFunctions registers dbscan_l2 and dbscan_cosine with the
// driver so they are available on new connections opened after this call.
// Existing open connections will not see new functions. Repeated calls are
// no-ops.
func RegisterDistanceFunctions() error {
	registerOnce.Do(func() {
		for name, fn := range map[string]vector.DistanceFunc{
			L2Function:     vector.L2Distance,
			CosineFunction: vector.CosineDistance,
		} {
			err := sqlite.RegisterDeterministicScalarFunction(name, 2, distanceImpl(name, fn))
			if err != nil && !strings.Contains(err.Error(), "already registered") {
				registerErr = errors.Wrapf(err, "engine: register %s", name)
				return
			}
		}
	})
	return registerErr
}

func distanceImpl(name string, fn vector.DistanceFunc) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, errors.Newf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asPoint(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := asPoint(name, args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		d, err := fn(a, b)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		return d, nil
	}
}

func asPoint(name string, arg driver.Value) ([]float64, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodePoint(v)
	default:
		return nil, errors.Newf("%s: unsupported argument type %T for point; want BLOB", name, arg)
	}
}
