// package models defines the data model shared by the matcher, the remote client and the local library
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// URIStatus enumerates the three resolution states of a local track.
type URIStatus int

const (
	Unresolved  URIStatus = iota // never searched
	Unavailable                  // searched, confirmed missing on the remote service
	Resolved                     // matched to a remote URI
)

func (s URIStatus) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Unavailable:
		return "unavailable"
	case Resolved:
		return "resolved"
	default:
		return ""
	}
}

// URIState is the remote identifier of a [LocalTrack].
//
// The zero value is [Unresolved]. In JSON an unresolved state is omitted (see omitzero),
// [Unavailable] is encoded as null and [Resolved] as the URI string.
type URIState struct {
	status URIStatus
	uri    string
}

// ResolvedURI returns a resolved state for uri. An empty uri yields [Unavailable].
func ResolvedURI(uri string) URIState {
	if uri == "" {
		return UnavailableURI()
	}
	return URIState{status: Resolved, uri: uri}
}

// UnavailableURI returns the confirmed-unavailable state.
func UnavailableURI() URIState {
	return URIState{status: Unavailable}
}

// Status reports which of the three states u is in.
func (u URIState) Status() URIStatus { return u.status }

// URI returns the resolved URI, or "" for the other states.
func (u URIState) URI() string { return u.uri }

// IsZero reports whether u is unresolved.
func (u URIState) IsZero() bool { return u.status == Unresolved }

// Known reports whether the track has been searched before, resolved or not.
func (u URIState) Known() bool { return u.status != Unresolved }

func (u URIState) String() string {
	if u.status == Resolved {
		return u.uri
	}
	return u.status.String()
}

// MarshalJSON encodes [Unavailable] as null and [Resolved] as a string.
func (u URIState) MarshalJSON() ([]byte, error) {
	if u.status == Resolved {
		return json.Marshal(u.uri)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes null as [Unavailable] and a string as [Resolved].
func (u *URIState) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = UnavailableURI()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("uri must be a string or null: %w", err)
	}
	*u = ResolvedURI(s)
	return nil
}

// LocalTrack is one audio file's known tag data.
type LocalTrack struct {
	Position    *int     `json:"position,omitempty"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album"`
	TrackNumber int      `json:"track_number,omitempty"`
	Year        int      `json:"year,omitempty"`
	Length      float64  `json:"length"`
	Path        string   `json:"path"`
	URI         URIState `json:"uri,omitzero"`
	HasArtwork  bool     `json:"has_artwork,omitempty"`
}

// Filename returns the lower-cased base filename without extension, the key used in the URI sidecar.
func (t *LocalTrack) Filename() string {
	base := filepath.Base(t.Path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

func (t *LocalTrack) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// RemoteCandidate is one track record returned by the remote API.
//
// Candidates are built at the API boundary and never carry the raw response.
type RemoteCandidate struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Artists          []string `json:"artists"`
	AlbumName        string   `json:"album_name"`
	AlbumReleaseDate string   `json:"album_release_date"`
	DurationMS       int      `json:"duration_ms"`
	URI              string   `json:"uri"`
	TrackNumber      int      `json:"track_number,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
}

// Duration returns the candidate's length in seconds.
func (c RemoteCandidate) Duration() float64 {
	return float64(c.DurationMS) / 1000
}

// DurationDelta is the absolute difference in seconds between the candidate and length.
func (c RemoteCandidate) DurationDelta(length float64) float64 {
	return math.Abs(c.Duration() - length)
}

// ReleaseYear parses the leading four digits of the album release date.
// ok is false when fewer than four digits are present.
func (c RemoteCandidate) ReleaseYear() (year int, ok bool) {
	digits := 0
	for _, r := range c.AlbumReleaseDate {
		if r < '0' || r > '9' {
			continue
		}
		year = year*10 + int(r-'0')
		digits++
		if digits == 4 {
			return year, true
		}
	}
	return 0, false
}

// Playlist is an ordered, named collection of local tracks backed by an m3u file.
type Playlist struct {
	Name   string        `json:"name"`
	Path   string        `json:"path,omitempty"`
	Tracks []*LocalTrack `json:"tracks"`
}

// URIs returns the resolved URIs of the playlist in track order.
func (p *Playlist) URIs() []string {
	uris := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.URI.Status() == Resolved {
			uris = append(uris, t.URI.URI())
		}
	}
	return uris
}

// Count returns the number of tracks in each [URIStatus].
func (p *Playlist) Count() map[URIStatus]int {
	counts := map[URIStatus]int{}
	for _, t := range p.Tracks {
		counts[t.URI.Status()]++
	}
	return counts
}

// RemotePlaylist is a playlist as held by the remote service.
type RemotePlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url"`
	URI         string            `json:"uri"`
	OwnerID     string            `json:"owner_id"`
	Public      bool              `json:"public"`
	TrackCount  int               `json:"track_count"`
	Tracks      []RemoteCandidate `json:"tracks,omitempty"`
}

// URIs returns the URIs of the remote playlist in order.
func (p *RemotePlaylist) URIs() []string {
	uris := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		uris = append(uris, t.URI)
	}
	return uris
}

// Token is a bearer token issued by the remote service's accounts endpoint.
//
// GrantedAt and ExpiresAt are unix timestamps; ExpiresAt is zero when the grant had no expiry.
type Token struct {
	AccessToken      string  `json:"access_token"`
	TokenType        string  `json:"token_type,omitempty"`
	RefreshToken     string  `json:"refresh_token,omitempty"`
	Scope            string  `json:"scope,omitempty"`
	ExpiresIn        int64   `json:"expires_in,omitempty"`
	GrantedAt        float64 `json:"granted_at"`
	ExpiresAt        float64 `json:"expires_at,omitempty"`
	Error            string  `json:"error,omitempty"`
	ErrorDescription string  `json:"error_description,omitempty"`
}

// Expiry returns ExpiresAt as a [time.Time], or the zero time when unset.
func (t *Token) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(t.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Redacted returns a copy safe to log.
func (t Token) Redacted() Token {
	redact := func(s string) string {
		if len(s) <= 5 {
			return s
		}
		return s[:5] + "..."
	}
	t.AccessToken = redact(t.AccessToken)
	t.RefreshToken = redact(t.RefreshToken)
	return t
}

// Outcome classifies a single resolution attempt.
type Outcome string

const (
	OutcomeStrong      Outcome = "strong"
	OutcomeWeak        Outcome = "weak"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// Resolution records what happened to one track during a resolve run.
type Resolution struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Playlist  string    `json:"playlist"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Outcome   Outcome   `json:"outcome"`
	URI       string    `json:"uri,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Difference compares a local playlist with its remote counterpart.
type Difference struct {
	Playlist  string            `json:"playlist"`
	RemoteID  string            `json:"remote_id,omitempty"`
	RemoteURL string            `json:"remote_url,omitempty"`
	Missing   []*LocalTrack     `json:"missing"` // resolved locally, absent remotely
	Extra     []RemoteCandidate `json:"extra"`   // present remotely, absent locally
}

// Empty reports whether the two playlists hold the same tracks.
func (d Difference) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}
