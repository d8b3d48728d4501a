// Package cache holds the process-wide dataset cache: one canonical table
// per project, refreshed from persisted storage when its freshness window
// lapses and evicted synchronously by every mutating operation. Reads are
// lock-free of each other; writes replace entries wholesale so no reader
// ever sees a table mid-mutation.
package cache
