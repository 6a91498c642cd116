// Package services implements the remote music service client.
//
// # Service Interface
//
// [Service] describes the operations the sync engine needs from a streaming provider:
// search, bulk track lookup and playlist management. Responses are converted into typed
// [models.RemoteCandidate] and [models.RemotePlaylist] values at this boundary so that the
// matcher never sees raw JSON.
//
// # Spotify Implementation
//
// [SpotifyService] is composed of an [api.Requester], which handles retries, pagination,
// batching and caching, and a token authority supplying its headers. Endpoint groups are
// plain methods on the service.
//
// # Identifiers
//
// [ParseID] classifies a string as a bare id, a URI, an open URL or an API URL and returns a
// discriminated [ID] instead of failing.
package services
