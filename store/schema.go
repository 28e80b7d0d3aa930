package store

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dbscan_datasets (
    dataset_id TEXT PRIMARY KEY,
    size       INTEGER NOT NULL,
    dimension  INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS dbscan_points (
    dataset_id TEXT NOT NULL,
    ordinal    INTEGER NOT NULL,
    coords     BLOB NOT NULL,
    PRIMARY KEY(dataset_id, ordinal)
);`,
	`CREATE TABLE IF NOT EXISTS dbscan_fits (
    dataset_id TEXT PRIMARY KEY,
    eps        REAL NOT NULL,
    min_pts    INTEGER NOT NULL,
    metric     TEXT NOT NULL,
    clusters   INTEGER NOT NULL,
    fitted_at  INTEGER NOT NULL,
    snapshot   BLOB
);`,
	`CREATE TABLE IF NOT EXISTS dbscan_labels (
    dataset_id TEXT NOT NULL,
    ordinal    INTEGER NOT NULL,
    label      INTEGER NOT NULL,
    core       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY(dataset_id, ordinal)
);`,
}

// EnsureSchema creates the dbscan_* tables and the fit log triggers in the
// provided database if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range append(schema, fitLogDDL()...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
