// Package dataset loads tabular feature data for clustering: CSV and JSON
// readers, feature/target extraction, a seeded train/test split and CSV
// export of labelled rows.
package dataset
