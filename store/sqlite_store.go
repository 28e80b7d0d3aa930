package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/viant/sqlite-dbscan/dbscan"
	"github.com/viant/sqlite-dbscan/engine"
	"github.com/viant/sqlite-dbscan/vector"
)

var (
	// ErrDatasetNotFound is returned for an unknown dataset id.
	ErrDatasetNotFound = errors.New("store: dataset not found")
	// ErrNotFitted is returned when a dataset has no persisted fit.
	ErrNotFitted = errors.New("store: dataset has no fit")
)

// Dataset describes a stored dataset.
type Dataset struct {
	ID        string
	Size      int
	Dimension int
	CreatedAt time.Time
}

// Fit is a persisted clustering of a dataset together with the parameters
// that produced it. Snapshot optionally holds the fitted index as produced
// by dbscan.Clusterer.Snapshot.
type Fit struct {
	DatasetID string
	Eps       float64
	MinPts    int
	Metric    vector.Metric
	Result    *dbscan.Result
	Snapshot  []byte
	FittedAt  time.Time
}

// SQLiteStore keeps datasets and fits in a SQLite database opened with
// engine.Open, which registers the SQL distance functions Predict relies on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store. It ensures the dbscan_*
// schema exists in the provided database.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("store: db is nil")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, errors.Wrap(err, "store: ensure schema")
	}
	return &SQLiteStore{db: db}, nil
}

// PutDataset stores points under id, replacing any dataset, fit and labels
// previously stored under the same id. All points must share one dimension.
func (s *SQLiteStore) PutDataset(ctx context.Context, id string, points [][]float64) error {
	if id == "" {
		return errors.New("store: PutDataset called with empty id")
	}
	if _, err := checkPoints(points); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := putDataset(ctx, tx, id, points); err != nil {
		return err
	}
	return tx.Commit()
}

// PutFitted fits points with c and, only when the fit succeeds, stores the
// dataset and its fit in one transaction. A failed fit leaves any dataset
// previously stored under id untouched.
func (s *SQLiteStore) PutFitted(ctx context.Context, id string, points [][]float64, c *dbscan.Clusterer) (*dbscan.Result, error) {
	if id == "" {
		return nil, errors.New("store: PutFitted called with empty id")
	}
	res, err := c.Fit(points)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	if err := putDataset(ctx, tx, id, points); err != nil {
		return nil, err
	}
	fit := &Fit{DatasetID: id, Eps: c.Eps(), MinPts: c.MinPts(), Metric: c.Metric(), Result: res, Snapshot: snapshot}
	if err := saveFit(ctx, tx, fit); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func checkPoints(points [][]float64) (int, error) {
	dim := 0
	if len(points) > 0 {
		dim = len(points[0])
	}
	for i, p := range points {
		if len(p) != dim {
			return 0, errors.Wrapf(vector.ErrDimensionMismatch, "store: point %d has dimension %d, want %d", i, len(p), dim)
		}
	}
	return dim, nil
}

func putDataset(ctx context.Context, tx *sql.Tx, id string, points [][]float64) error {
	dim, err := checkPoints(points)
	if err != nil {
		return err
	}
	if err := deleteDataset(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dbscan_datasets(dataset_id, size, dimension, created_at) VALUES(?, ?, ?, ?)`,
		id, len(points), dim, time.Now().Unix()); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dbscan_points(dataset_id, ordinal, coords) VALUES(?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range points {
		blob, err := vector.EncodePoint(p)
		if err != nil {
			return err
		}
		if blob == nil {
			blob = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, id, i, blob); err != nil {
			return err
		}
	}
	return nil
}

// Dataset returns the description of a stored dataset.
func (s *SQLiteStore) Dataset(ctx context.Context, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, size, dimension, created_at FROM dbscan_datasets WHERE dataset_id = ?`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrDatasetNotFound, "%q", id)
	}
	return d, err
}

// Datasets lists stored datasets ordered by id.
func (s *SQLiteStore) Datasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id, size, dimension, created_at FROM dbscan_datasets ORDER BY dataset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Points returns the points of a dataset in their original order.
func (s *SQLiteStore) Points(ctx context.Context, id string) ([][]float64, error) {
	d, err := s.Dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT coords FROM dbscan_points WHERE dataset_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([][]float64, 0, d.Size)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		p, err := vector.DecodePoint(blob)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = []float64{}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveFit persists a clustering of a stored dataset, replacing any previous
// fit of it.
func (s *SQLiteStore) SaveFit(ctx context.Context, fit *Fit) error {
	if fit == nil || fit.Result == nil {
		return errors.New("store: SaveFit called with nil fit")
	}
	d, err := s.Dataset(ctx, fit.DatasetID)
	if err != nil {
		return err
	}
	if len(fit.Result.Labels) != d.Size {
		return errors.Newf("store: fit has %d labels, dataset %q has %d points", len(fit.Result.Labels), d.ID, d.Size)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := saveFit(ctx, tx, fit); err != nil {
		return err
	}
	return tx.Commit()
}

func saveFit(ctx context.Context, tx *sql.Tx, fit *Fit) error {
	fittedAt := fit.FittedAt
	if fittedAt.IsZero() {
		fittedAt = time.Now()
	}
	id := fit.DatasetID
	if _, err := tx.ExecContext(ctx, `DELETE FROM dbscan_labels WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	var snapshot any
	if len(fit.Snapshot) > 0 {
		snapshot = fit.Snapshot
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO dbscan_fits(dataset_id, eps, min_pts, metric, clusters, fitted_at, snapshot)
VALUES(?, ?, ?, ?, ?, ?, ?)`, id, fit.Eps, fit.MinPts, string(fit.Metric), fit.Result.Clusters, fittedAt.Unix(), snapshot); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dbscan_labels(dataset_id, ordinal, label, core) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, l := range fit.Result.Labels {
		core := 0
		if i < len(fit.Result.Core) && fit.Result.Core[i] {
			core = 1
		}
		if _, err := stmt.ExecContext(ctx, id, i, int(l), core); err != nil {
			return err
		}
	}
	return nil
}

// LoadFit returns the persisted fit of a dataset.
func (s *SQLiteStore) LoadFit(ctx context.Context, id string) (*Fit, error) {
	if _, err := s.Dataset(ctx, id); err != nil {
		return nil, err
	}
	fit := &Fit{DatasetID: id, Result: &dbscan.Result{}}
	var metric string
	var fittedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT eps, min_pts, metric, clusters, fitted_at, snapshot FROM dbscan_fits WHERE dataset_id = ?`, id).
		Scan(&fit.Eps, &fit.MinPts, &metric, &fit.Result.Clusters, &fittedAt, &fit.Snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFitted, "%q", id)
	}
	if err != nil {
		return nil, err
	}
	fit.Metric = vector.Metric(metric)
	fit.FittedAt = time.Unix(fittedAt, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT label, core FROM dbscan_labels WHERE dataset_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var label, core int
		if err := rows.Scan(&label, &core); err != nil {
			return nil, err
		}
		fit.Result.Labels = append(fit.Result.Labels, dbscan.Label(label))
		fit.Result.Core = append(fit.Result.Core, core != 0)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if fit.Result.Labels == nil {
		fit.Result.Labels = []dbscan.Label{}
		fit.Result.Core = []bool{}
	}
	return fit, nil
}

// Cluster fits the stored dataset with c and persists the result.
func (s *SQLiteStore) Cluster(ctx context.Context, id string, c *dbscan.Clusterer) (*dbscan.Result, error) {
	points, err := s.Points(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := c.Fit(points)
	if err != nil {
		return nil, err
	}
	snapshot, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	err = s.SaveFit(ctx, &Fit{DatasetID: id, Eps: c.Eps(), MinPts: c.MinPts(), Metric: c.Metric(), Result: res, Snapshot: snapshot})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Clusterer rebuilds an in-memory Clusterer from a stored fit. The fitted
// index snapshot is used when present, otherwise the dataset points are
// reloaded.
func (s *SQLiteStore) Clusterer(ctx context.Context, id string, opts ...dbscan.Option) (*dbscan.Clusterer, error) {
	fit, err := s.LoadFit(ctx, id)
	if err != nil {
		return nil, err
	}
	opts = append(opts, dbscan.WithMetric(fit.Metric))
	c, err := dbscan.New(fit.Eps, fit.MinPts, opts...)
	if err != nil {
		return nil, err
	}
	if len(fit.Snapshot) > 0 {
		if err := c.RestoreSnapshot(fit.Snapshot, fit.Result); err != nil {
			return nil, err
		}
		return c, nil
	}
	points, err := s.Points(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Restore(points, fit.Result); err != nil {
		return nil, err
	}
	return c, nil
}

// Predict classifies point against the persisted fit of a dataset inside
// SQLite: the nearest clustered point within the fit's eps wins, ties going
// to the lowest ordinal, and Noise is returned when there is none.
func (s *SQLiteStore) Predict(ctx context.Context, id string, point []float64) (dbscan.Label, error) {
	d, err := s.Dataset(ctx, id)
	if err != nil {
		return dbscan.Noise, err
	}
	var eps float64
	var metric string
	err = s.db.QueryRowContext(ctx, `SELECT eps, metric FROM dbscan_fits WHERE dataset_id = ?`, id).Scan(&eps, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return dbscan.Noise, errors.Wrapf(ErrNotFitted, "%q", id)
	}
	if err != nil {
		return dbscan.Noise, err
	}
	if d.Size == 0 {
		return dbscan.Noise, nil
	}
	if len(point) != d.Dimension {
		return dbscan.Noise, errors.Wrapf(vector.ErrDimensionMismatch, "store: query dim %d != dataset dim %d", len(point), d.Dimension)
	}
	fn, err := distanceFunction(vector.Metric(metric))
	if err != nil {
		return dbscan.Noise, err
	}
	blob, err := vector.EncodePoint(point)
	if err != nil {
		return dbscan.Noise, err
	}
	query := fmt.Sprintf(`SELECT label FROM (
    SELECT l.label AS label, p.ordinal AS ordinal, %s(p.coords, ?) AS dist
    FROM dbscan_points p
    JOIN dbscan_labels l ON l.dataset_id = p.dataset_id AND l.ordinal = p.ordinal
    WHERE p.dataset_id = ? AND l.label > 0
) WHERE dist <= ? ORDER BY dist, ordinal LIMIT 1`, fn)
	var label int
	err = s.db.QueryRowContext(ctx, query, blob, id, eps).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return dbscan.Noise, nil
	}
	if err != nil {
		return dbscan.Noise, err
	}
	return dbscan.Label(label), nil
}

// DeleteDataset removes a dataset with its fit and labels.
func (s *SQLiteStore) DeleteDataset(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("store: DeleteDataset called with empty id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteDataset(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDataset(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"dbscan_labels", "dbscan_fits", "dbscan_points", "dbscan_datasets"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE dataset_id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

func distanceFunction(m vector.Metric) (string, error) {
	switch m {
	case vector.MetricEuclidean, "":
		return engine.L2Function, nil
	case vector.MetricCosine:
		return engine.CosineFunction, nil
	}
	return "", errors.Newf("store: unsupported metric %q", string(m))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*Dataset, error) {
	var d Dataset
	var created int64
	if err := row.Scan(&d.ID, &d.Size, &d.Dimension, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(created, 0)
	return &d, nil
}

