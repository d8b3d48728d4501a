// Package project owns per-project persistence and consolidation.
//
// The Store lays each project out as one directory holding the canonical
// dataset snapshot, the settings record, the upload ledger, the audit log
// and the raw uploaded files. The Engine merges parsed uploads into the
// canonical dataset, tags every row with the upload that contributed it,
// and keeps the ledger, audit log and dataset cache coherent with each
// merge, undo and reset.
package project
