// Package store persists datasets and fitted clusterings in SQLite. It
// includes:
//   - SQLiteStore: datasets, per-point labels and fit parameters
//   - Schema helpers creating the dbscan_* tables
//   - SQL-side prediction using the engine's dbscan_l2/dbscan_cosine functions
package store
