// Package index defines the neighbourhood index contract used by the
// clustering engine.
package index
