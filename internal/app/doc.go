// Package app assembles the application: it loads configuration, constructs
// the project store, dataset cache, consolidation engine and service layer,
// and runs the HTTP server with graceful shutdown.
package app
