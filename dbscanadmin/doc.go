// Package dbscanadmin exposes clustering operations through a SQLite virtual
// table so they can be driven from plain SQL.
package dbscanadmin
