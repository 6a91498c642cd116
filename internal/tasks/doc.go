// Package tasks orchestrates sync operations between local playlists and the remote service with
// real-time progress reporting.
//
// # Core Operations
//
//  1. [Resolver.ResolveAll] : match local tracks to remote tracks
//     - Queries "title artist", then "title album", then "title" until one returns results
//     - Accepts the first strong match (duration, album or year agree), retrying on a
//     title-only search, then falls back to the weak match with the closest duration
//     - Tracks already resolved or known to be unavailable are skipped without a request
//     - Tracks that stay unmatched are marked unavailable at the end of the pass
//
//  2. [Syncer.Push] : create or extend the remote playlist of each local playlist
//
//  3. [Syncer.Differences] : tracks missing from or extra to each remote playlist
//
//  4. [Syncer.UpdateURIs] : re-point local URIs the remote service has relinked
//
//  5. [Tagger.Tag] : write resolved URIs and album artwork into audio files
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Resolution history
//
// The optional [Recorder] (repositories.ResolutionRepository) stores the outcome of every
// searched track under a run id, which the report command exports.
package tasks
