package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestURIState(t *testing.T) {
	t.Run("zero value is unresolved", func(t *testing.T) {
		var u URIState
		if u.Status() != Unresolved || u.Known() {
			t.Errorf("expected unresolved zero value, got %v", u.Status())
		}
	})

	t.Run("empty uri is unavailable", func(t *testing.T) {
		if got := ResolvedURI("").Status(); got != Unavailable {
			t.Errorf("expected unavailable, got %v", got)
		}
	})

	t.Run("JSON keeps three states apart", func(t *testing.T) {
		tc := []struct {
			name  string
			track LocalTrack
			want  string
		}{
			{"unresolved omits key", LocalTrack{Title: "a"}, ""},
			{"unavailable is null", LocalTrack{Title: "a", URI: UnavailableURI()}, `"uri":null`},
			{"resolved is string", LocalTrack{Title: "a", URI: ResolvedURI("spotify:track:1")}, `"uri":"spotify:track:1"`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				data, err := json.Marshal(tt.track)
				if err != nil {
					t.Fatalf("marshal failed: %v", err)
				}

				if tt.want == "" {
					if strings.Contains(string(data), `"uri"`) {
						t.Errorf("expected no uri key, got %s", data)
					}
				} else if !strings.Contains(string(data), tt.want) {
					t.Errorf("expected %s in %s", tt.want, data)
				}

				var decoded LocalTrack
				if err := json.Unmarshal(data, &decoded); err != nil {
					t.Fatalf("unmarshal failed: %v", err)
				}
				if decoded.URI != tt.track.URI {
					t.Errorf("state changed through JSON: %v -> %v", tt.track.URI, decoded.URI)
				}
			})
		}
	})

	t.Run("rejects non-string uri", func(t *testing.T) {
		var track LocalTrack
		if err := json.Unmarshal([]byte(`{"uri": 12}`), &track); err == nil {
			t.Error("expected error for numeric uri")
		}
	})
}

func TestLocalTrack(t *testing.T) {
	track := &LocalTrack{Title: "Yesterday", Artist: "The Beatles", Path: "/music/Help!/02 - Yesterday.FLAC"}

	if got := track.Filename(); got != "02 - yesterday" {
		t.Errorf("Filename() = %q", got)
	}
	if got := track.String(); got != "The Beatles - Yesterday" {
		t.Errorf("String() = %q", got)
	}
}

func TestRemoteCandidate(t *testing.T) {
	t.Run("ReleaseYear", func(t *testing.T) {
		tc := []struct {
			date string
			year int
			ok   bool
		}{
			{"1965-08-06", 1965, true},
			{"1965", 1965, true},
			{"196", 0, false},
			{"", 0, false},
			{"unknown", 0, false},
		}
		for _, tt := range tc {
			year, ok := RemoteCandidate{AlbumReleaseDate: tt.date}.ReleaseYear()
			if year != tt.year || ok != tt.ok {
				t.Errorf("ReleaseYear(%q) = %d, %v; want %d, %v", tt.date, year, ok, tt.year, tt.ok)
			}
		}
	})

	t.Run("DurationDelta", func(t *testing.T) {
		c := RemoteCandidate{DurationMS: 126000}
		if got := c.DurationDelta(125); got != 1 {
			t.Errorf("expected 1, got %v", got)
		}
		if got := c.DurationDelta(130); got != 4 {
			t.Errorf("expected 4, got %v", got)
		}
	})
}

func TestPlaylist(t *testing.T) {
	p := &Playlist{Tracks: []*LocalTrack{
		{Title: "a", URI: ResolvedURI("spotify:track:a")},
		{Title: "b", URI: UnavailableURI()},
		{Title: "c"},
		{Title: "d", URI: ResolvedURI("spotify:track:d")},
	}}

	uris := p.URIs()
	if len(uris) != 2 || uris[0] != "spotify:track:a" || uris[1] != "spotify:track:d" {
		t.Errorf("unexpected URIs %v", uris)
	}

	counts := p.Count()
	if counts[Resolved] != 2 || counts[Unavailable] != 1 || counts[Unresolved] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestToken(t *testing.T) {
	tok := Token{AccessToken: "abcdefghij", RefreshToken: "klmnopqrst", ExpiresAt: 1700000000}

	r := tok.Redacted()
	if r.AccessToken != "abcde..." || r.RefreshToken != "klmno..." {
		t.Errorf("unexpected redaction %+v", r)
	}
	if tok.AccessToken != "abcdefghij" {
		t.Error("Redacted must not modify the receiver")
	}
	if tok.Expiry().Unix() != 1700000000 {
		t.Errorf("unexpected expiry %v", tok.Expiry())
	}
	if !(&Token{}).Expiry().IsZero() {
		t.Error("expected zero expiry")
	}
}
