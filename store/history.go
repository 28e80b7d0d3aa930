package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/sqlite-dbscan/vector"
)

const (
	// FitLogTable records every change to dbscan_fits, populated by triggers.
	FitLogTable = "dbscan_fit_log"

	// FitSeqTable stores the next log sequence number per dataset.
	FitSeqTable = "dbscan_fit_seq"
)

// FitEvent is one row of the fit log.
type FitEvent struct {
	DatasetID string
	Seq       int64
	Op        string
	Eps       float64
	MinPts    int
	Metric    vector.Metric
	Clusters  int
	CreatedAt time.Time
}

func fitLogDDL() []string {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + FitLogTable + ` (
    dataset_id TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    op         TEXT NOT NULL,
    eps        REAL NOT NULL,
    min_pts    INTEGER NOT NULL,
    metric     TEXT NOT NULL,
    clusters   INTEGER NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY(dataset_id, seq)
);`,
		`CREATE TABLE IF NOT EXISTS ` + FitSeqTable + ` (
    dataset_id TEXT PRIMARY KEY,
    next_seq   INTEGER NOT NULL
);`,
	}
	return append(ddl, fitLogTriggers("dbscan_fits")...)
}

// fitLogTriggers returns AFTER INSERT/UPDATE/DELETE triggers on table that
// advance the dataset sequence and append the affected fit to the log.
// INSERT OR REPLACE fires only the insert trigger.
func fitLogTriggers(table string) []string {
	base := strings.NewReplacer(".", "_", "-", "_").Replace(table)
	advance := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(dataset_id, next_seq)
    VALUES (%[2]s.dataset_id, 1)
    ON CONFLICT(dataset_id) DO UPDATE SET next_seq = next_seq + 1;`, FitSeqTable, alias)
	}
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_%[2]s AFTER %[3]s ON %[4]s
BEGIN
    %[5]s
    INSERT INTO %[6]s(dataset_id, seq, op, eps, min_pts, metric, clusters)
    VALUES (
        %[7]s.dataset_id,
        (SELECT next_seq FROM %[8]s WHERE dataset_id = %[7]s.dataset_id),
        '%[9]s',
        %[7]s.eps,
        %[7]s.min_pts,
        %[7]s.metric,
        %[7]s.clusters
    );
END;`, base, suffix, event, table, advance(alias), FitLogTable, alias, FitSeqTable, op)
	}
	return []string{
		trigger("ai", "INSERT", "fit", "NEW"),
		trigger("au", "UPDATE", "update", "NEW"),
		trigger("ad", "DELETE", "delete", "OLD"),
	}
}

// FitHistory returns the logged fit changes of a dataset, oldest first.
// The log outlives the dataset, so a deleted id still has history.
func (s *SQLiteStore) FitHistory(ctx context.Context, id string) ([]FitEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_id, seq, op, eps, min_pts, metric, clusters, created_at
FROM `+FitLogTable+` WHERE dataset_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []FitEvent
	for rows.Next() {
		var e FitEvent
		var metric string
		var createdAt int64
		if err := rows.Scan(&e.DatasetID, &e.Seq, &e.Op, &e.Eps, &e.MinPts, &metric, &e.Clusters, &createdAt); err != nil {
			return nil, err
		}
		e.Metric = vector.Metric(metric)
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}
