// Package matching decides whether a remote search result is the same song as a local track.
//
// # Normalization
//
// [Clean] strips bracketed annotations, featured-artist suffixes, connector words and
// punctuation from titles, artists and albums so they can be compared token by token.
//
// # Matching
//
// [StrongMatch] trusts any one of three cheap signals (duration within [TimeTolerance],
// album substring, release year) and returns the first candidate that has one.
//
// [WeakMatch] runs only when strong matching fails. It accepts candidates on token-subset
// title or artist matches and keeps the one closest in duration.
//
// Both passes reject karaoke and backing-track versions.
package matching
