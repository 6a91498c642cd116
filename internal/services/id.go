package services

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind is the form an identifier was given in.
type Kind int

const (
	KindUnknown Kind = iota
	KindID           // bare 22 character base62 id
	KindURI          // spotify:track:<id>
	KindURL          // https://open.spotify.com/track/<id>
	KindAPI          // https://api.spotify.com/v1/tracks/<id>
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindURI:
		return "uri"
	case KindURL:
		return "url"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Item types understood by [ParseID].
const (
	TypeTrack    = "track"
	TypePlaylist = "playlist"
	TypeAlbum    = "album"
	TypeArtist   = "artist"
	TypeUser     = "user"
	TypeShow     = "show"
	TypeEpisode  = "episode"
)

var (
	baseID    = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)
	itemTypes = map[string]bool{
		TypeTrack: true, TypePlaylist: true, TypeAlbum: true, TypeArtist: true,
		TypeUser: true, TypeShow: true, TypeEpisode: true,
	}
)

const (
	openHost = "open.spotify.com"
	apiHost  = "api.spotify.com"
)

// ID is the result of classifying an identifier. Kind is [KindUnknown] when the input could
// not be understood; Type is empty for bare ids, which carry no type.
type ID struct {
	Kind  Kind
	Type  string
	Value string
}

// Valid reports whether the identifier was recognised.
func (id ID) Valid() bool {
	return id.Kind != KindUnknown && id.Value != ""
}

// URI formats the identifier as a spotify URI, using fallback when the type is unknown.
func (id ID) URI(fallback string) string {
	t := id.Type
	if t == "" {
		t = fallback
	}
	return "spotify:" + t + ":" + id.Value
}

// ParseID classifies value as a URL, URI or bare id.
func ParseID(value string) ID {
	value = strings.TrimSpace(value)

	switch {
	case strings.HasPrefix(value, "spotify:"):
		return parseURI(value)
	case strings.Contains(value, "://"):
		return parseURL(value)
	case value == "":
		return ID{}
	default:
		// user ids are free form, so only the base62 shape identifies a bare id
		if baseID.MatchString(value) {
			return ID{Kind: KindID, Value: value}
		}
		return ID{}
	}
}

func parseURI(value string) ID {
	parts := strings.Split(value, ":")
	// spotify:user:<owner>:playlist:<id> is the legacy playlist form
	if len(parts) == 5 && parts[1] == TypeUser && parts[3] == TypePlaylist {
		parts = []string{parts[0], parts[3], parts[4]}
	}
	if len(parts) != 3 || !itemTypes[parts[1]] || parts[2] == "" {
		return ID{}
	}
	return ID{Kind: KindURI, Type: parts[1], Value: parts[2]}
}

func parseURL(value string) ID {
	u, err := url.Parse(value)
	if err != nil {
		return ID{}
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch u.Host {
	case openHost:
		// strip locale prefixes such as /intl-de/
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) >= 2 && itemTypes[segments[len(segments)-2]] {
			return ID{Kind: KindURL, Type: segments[len(segments)-2], Value: segments[len(segments)-1]}
		}
	case apiHost:
		if len(segments) >= 3 && segments[0] == "v1" {
			t := strings.TrimSuffix(segments[1], "s")
			if itemTypes[t] {
				return ID{Kind: KindAPI, Type: t, Value: segments[2]}
			}
		}
	}
	return ID{}
}
