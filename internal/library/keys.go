package library

import (
	"path/filepath"
	"strings"
)

// URITag is the tag name the resolved URI is written under.
const URITag = "SPOTIFY_URI"

// Format is a supported or recognised audio container.
type Format string

const (
	FormatMP3  Format = ".mp3"
	FormatFLAC Format = ".flac"
	FormatM4A  Format = ".m4a"
	FormatWMA  Format = ".wma"
)

// keyMap lists, per field, the tag keys to try in order.
type keyMap struct {
	Title  []string
	Artist []string
	Album  []string
	Track  []string
	Genre  []string
	Year   []string
}

// tagKeys holds the tag key names of each format. M4A and WMA are listed so that they are
// recognised as audio, but no reader exists for them.
var tagKeys = map[Format]keyMap{
	FormatFLAC: {
		Title:  []string{"TITLE"},
		Artist: []string{"ARTIST", "ALBUMARTIST"},
		Album:  []string{"ALBUM"},
		Track:  []string{"TRACKNUMBER"},
		Genre:  []string{"GENRE"},
		Year:   []string{"YEAR", "DATE"},
	},
	FormatMP3: {
		Title:  []string{"TIT2"},
		Artist: []string{"TPE1", "TPE2"},
		Album:  []string{"TALB"},
		Track:  []string{"TRCK"},
		Genre:  []string{"TCON"},
		Year:   []string{"TDRC", "TYER", "TDAT"},
	},
	FormatM4A: {
		Title:  []string{"©nam"},
		Artist: []string{"©ART", "aART"},
		Album:  []string{"©alb"},
		Track:  []string{"trkn"},
		Genre:  []string{"©gen"},
		Year:   []string{"©day"},
	},
	FormatWMA: {
		Title:  []string{"Title"},
		Artist: []string{"Author", "WM/AlbumArtist"},
		Album:  []string{"WM/AlbumTitle"},
		Track:  []string{"WM/TrackNumber"},
		Genre:  []string{"WM/Genre"},
		Year:   []string{"WM/Year"},
	},
}

// FormatOf returns the format of path and whether it is a known audio format.
func FormatOf(path string) (Format, bool) {
	f := Format(strings.ToLower(filepath.Ext(path)))
	_, ok := tagKeys[f]
	return f, ok
}

// first returns the first non blank value found for keys.
func first(keys []string, get func(key string) string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(get(k)); v != "" {
			return v
		}
	}
	return ""
}

// leadingNumber reads the digits of s as one number, stopping after limit digits when limit
// is positive. "1965-08-06" with a limit of 4 is 1965.
func leadingNumber(s string, limit int) int {
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		n = n*10 + int(r-'0')
		digits++
		if limit > 0 && digits == limit {
			break
		}
	}
	return n
}

// trackNumber parses values such as "3/12" as 3.
func trackNumber(s string) int {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return leadingNumber(s, 0)
}
