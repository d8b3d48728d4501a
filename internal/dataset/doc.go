// Package dataset implements the canonical in-memory table model shared by
// every engine component: a columnar Table with tagged cell types, the
// Excel/CSV reader that turns uploaded bytes into tables, the memory
// optimizer (dictionary encoding and numeric downcasting), the raw-XML
// spreadsheet writer used for downloads, and the atomic snapshot codec used
// for on-disk persistence.
//
// Tables are immutable values. Every transformation — row filtering, column
// renames, concatenation, optimization, date normalization — produces a new
// Table that shares untouched column storage with its source. This is what
// lets the dataset cache hand the same Table to many concurrent readers
// without defensive copying.
package dataset
