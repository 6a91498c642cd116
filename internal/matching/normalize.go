package matching

import (
	"regexp"
	"strings"
)

// Field selects the cleaning rules applied by [Clean].
type Field int

const (
	FieldTitle Field = iota
	FieldArtist
	FieldAlbum
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldArtist:
		return "artist"
	case FieldAlbum:
		return "album"
	default:
		return ""
	}
}

var (
	bracketed  = regexp.MustCompile(`[\(\[].*?[\)\]]`)
	connectors = regexp.MustCompile(`(^|\s)(?:part|the)\s`)
	articles   = regexp.MustCompile(`(^|\s)the\s`)
	nonWord    = regexp.MustCompile(`[^a-z0-9']+`)
)

var (
	titleCuts  = []string{"featuring", "feat.", "ft.", " / "}
	artistCuts = []string{" featuring", " feat.", " ft.", "&", " and ", " vs"}
)

// Clean normalizes text for comparison according to field.
//
// Clean is pure and idempotent: Clean(Clean(s, f), f) == Clean(s, f). Input that cleans
// down to nothing yields "".
func Clean(text string, field Field) string {
	s := text
	for {
		next := cleanOnce(s, field)
		if next == s {
			return s
		}
		s = next
	}
}

// CleanTrack returns the cleaned title, artist and album in one call.
func CleanTrack(title, artist, album string) (string, string, string) {
	return Clean(title, FieldTitle), Clean(artist, FieldArtist), Clean(album, FieldAlbum)
}

func cleanOnce(s string, field Field) string {
	switch field {
	case FieldTitle:
		s = bracketed.ReplaceAllString(s, "")
		s = strings.ToLower(s)
		s = connectors.ReplaceAllString(s, " ")
		s = truncateAt(s, titleCuts...)
	case FieldArtist:
		s = bracketed.ReplaceAllString(s, "")
		s = strings.ToLower(s)
		s = articles.ReplaceAllString(s, " ")
		s = truncateAt(s, artistCuts...)
	case FieldAlbum:
		s = truncateAt(s, "-")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "ep", "")
		s = bracketed.ReplaceAllString(s, "")
		s = articles.ReplaceAllString(s, " ")
	default:
		s = strings.ToLower(s)
	}
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// truncateAt cuts s at the earliest occurrence of any of seps.
func truncateAt(s string, seps ...string) string {
	cut := len(s)
	for _, sep := range seps {
		if i := strings.Index(s, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return s[:cut]
}

// tokens splits cleaned text on whitespace.
func tokens(s string) []string {
	return strings.Fields(s)
}

// containsAll reports whether every token appears as a substring of s.
// An empty token list always matches.
func containsAll(s string, toks []string) bool {
	for _, t := range toks {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
