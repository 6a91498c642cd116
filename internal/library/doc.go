// Package library reads the local side of the sync: m3u playlists, audio file tags and the
// URI sidecar that remembers what each file resolved to.
//
//   - [Loader] : every m3u playlist in a directory, with tag data for each existing file
//   - [Files] : tag reading for MP3 (ID3v2) and FLAC (Vorbis comments), plus URI and artwork writing
//   - [URIStore] : the JSON sidecar mapping album → filename → URI, where null marks a track
//     that was searched for and found to be unavailable
package library
