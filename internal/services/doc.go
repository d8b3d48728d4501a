// Package services orchestrates the engine packages behind a small facade:
// project lifecycle and ingestion, analytics over cached datasets, audit
// scans and on-demand spreadsheet exports. Handlers call services; services
// call the store, cache, engine and analytics packages.
package services
