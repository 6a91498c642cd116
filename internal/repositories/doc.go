// Package repositories implements SQLite persistence for the sync engine.
//
// Key Implementations:
//   - [ResponseCache] : raw GET response bodies keyed by method and URL, with expiry
//   - [ResolutionRepository] : per-track outcome of each resolve run
//
// Timestamps are stored in UTC truncated to the second so that SQL comparisons on the
// text encoding used by the driver stay ordered.
package repositories
