// Package models defines the entities passed between the matcher, the remote client and the local library.
//
//   - [LocalTrack] : tag data of one audio file, with a three state [URIState]
//   - [RemoteCandidate] : a typed search result, built by the remote client and consumed by the matcher
//   - [Playlist] : an ordered m3u playlist of local tracks
//   - [RemotePlaylist] : a playlist held by the remote service
//   - [Token] : a persisted bearer token
//
// A track's URI distinguishes "never searched" from "searched but unavailable". Both the JSON
// encoding and the sidecar file keep the two apart.
package models
