// Package bruteforce provides a neighbourhood index that answers radius
// queries by scanning all points, O(n) per query. It supports a compact
// binary format so fitted datasets can be persisted as a single BLOB.
package bruteforce
