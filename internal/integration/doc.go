// Package integration provides cross-package integration tests for Lincoln.
// These tests run the real queue, SQLite store, model client, dispatcher, signal
// watcher and status API together, with the model API replaced by a local server.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
