package dbscanadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/dbscan"
	"github.com/viant/sqlite-dbscan/store"
	"github.com/viant/sqlite-dbscan/vector"
	"go.uber.org/zap"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name the virtual table module is registered under.
const ModuleName = "dbscan_admin"

// Module provides clustering operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE dbscan_admin USING dbscan_admin(op);
//	SELECT op FROM dbscan_admin WHERE op MATCH 'fit train eps=0.5 min_pts=2';
//	SELECT op FROM dbscan_admin WHERE op MATCH 'predict train 1.05,1.05';
//
// fit clusters a stored dataset, persists the labels and returns a single
// row 'fitted:<clusters>:noise:<count>'. predict returns the label of the
// point against the persisted fit, a cluster id or 'noise'.
type Module struct {
	store  *store.SQLiteStore
	logger *zap.Logger
}

type Table struct{ module *Module }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Register installs the dbscan_admin module. Connections opened afterwards
// can create the virtual table.
func Register(db *sql.DB, s *store.SQLiteStore, logger *zap.Logger) error {
	if s == nil {
		return errors.New("dbscanadmin: store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := vtab.RegisterModule(db, ModuleName, &Module{store: s, logger: logger}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Connect(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, errors.New("dbscan_admin: need at least 3 args")
	}
	// Single TEXT column `op` carrying both the request and the result.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return &Table{module: m}, nil
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 1
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error         { return nil }
func (t *Table) Destroy() error            { return nil }

func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	text, ok := vals[0].(string)
	if !ok {
		return errors.New("dbscan_admin: MATCH expects an operation as TEXT")
	}
	op, err := parseOp(text)
	if err != nil {
		return err
	}
	out, err := c.table.module.run(context.Background(), op)
	if err != nil {
		return err
	}
	c.rows = []string{out}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, errors.New("dbscan_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

func (c *Cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}

type opKind string

const (
	opFit     opKind = "fit"
	opPredict opKind = "predict"
)

type operation struct {
	kind    opKind
	dataset string
	eps     float64
	minPts  int
	metric  vector.Metric
	point   []float64
}

// parseOp parses 'fit <dataset> eps=<f> min_pts=<n> [metric=<m>]' or
// 'predict <dataset> <x,y,...>'.
func parseOp(text string) (*operation, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, errors.Newf("dbscan_admin: malformed operation %q", text)
	}
	op := &operation{kind: opKind(strings.ToLower(fields[0])), dataset: fields[1]}
	switch op.kind {
	case opFit:
		var haveEps, haveMinPts bool
		for _, kv := range fields[2:] {
			key, val, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, errors.Newf("dbscan_admin: expected key=value, got %q", kv)
			}
			switch strings.ToLower(key) {
			case "eps":
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, errors.Wrap(err, "dbscan_admin: eps")
				}
				op.eps, haveEps = f, true
			case "min_pts", "minpts":
				n, err := strconv.Atoi(val)
				if err != nil {
					return nil, errors.Wrap(err, "dbscan_admin: min_pts")
				}
				op.minPts, haveMinPts = n, true
			case "metric":
				m, err := vector.ParseMetric(val)
				if err != nil {
					return nil, err
				}
				op.metric = m
			default:
				return nil, errors.Newf("dbscan_admin: unknown option %q", key)
			}
		}
		if !haveEps || !haveMinPts {
			return nil, errors.New("dbscan_admin: fit requires eps and min_pts")
		}
	case opPredict:
		if len(fields) != 3 {
			return nil, errors.New("dbscan_admin: predict expects '<dataset> <x,y,...>'")
		}
		p, err := vector.ParsePoint(fields[2])
		if err != nil {
			return nil, err
		}
		op.point = p
	default:
		return nil, errors.Newf("dbscan_admin: unknown operation %q", fields[0])
	}
	return op, nil
}

func (m *Module) run(ctx context.Context, op *operation) (string, error) {
	switch op.kind {
	case opFit:
		opts := []dbscan.Option{dbscan.WithLogger(m.logger)}
		if op.metric != "" {
			opts = append(opts, dbscan.WithMetric(op.metric))
		}
		c, err := dbscan.New(op.eps, op.minPts, opts...)
		if err != nil {
			return "", err
		}
		res, err := m.store.Cluster(ctx, op.dataset, c)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("fitted:%d:noise:%d", res.Clusters, len(res.Noise())), nil
	case opPredict:
		l, err := m.store.Predict(ctx, op.dataset, op.point)
		if err != nil {
			return "", err
		}
		return l.String(), nil
	}
	return "", errors.Newf("dbscan_admin: unknown operation %q", string(op.kind))
}
