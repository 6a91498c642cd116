package matching

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/m3usync/internal/models"
)

const (
	// TimeTolerance is the largest duration difference, in seconds, accepted as a strong signal.
	TimeTolerance = 20.0

	// weakSentinel is the starting best delta for weak matching; no real candidate is that far off.
	weakSentinel = 600.0
)

var karaokeWords = []string{"karaoke", "backing"}

// Signals are the per-candidate booleans computed during strong matching.
type Signals struct {
	Time       bool
	Album      bool
	Year       bool
	NotKaraoke bool
}

// Strong reports whether the signals are enough to accept a candidate.
func (s Signals) Strong() bool {
	return s.NotKaraoke && (s.Time || s.Album || s.Year)
}

// Evaluate computes the strong-match signals of candidate against local.
func Evaluate(local *models.LocalTrack, c models.RemoteCandidate) Signals {
	sig := Signals{
		Time:       c.DurationDelta(local.Length) <= TimeTolerance,
		NotKaraoke: albumNotKaraoke(c),
	}

	// An empty local album is a substring of every album name.
	sig.Album = strings.Contains(strings.ToLower(c.AlbumName), strings.ToLower(local.Album))

	if year, ok := c.ReleaseYear(); ok && local.Year != 0 {
		sig.Year = year == local.Year
	}

	for _, artist := range c.Artists {
		if isKaraoke(Clean(artist, FieldArtist)) {
			sig.NotKaraoke = false
			break
		}
	}

	return sig
}

// StrongMatch returns the first candidate, in the order given, that is not a karaoke
// version and agrees with local on duration, album or release year. It returns nil
// when no candidate qualifies.
func StrongMatch(local *models.LocalTrack, candidates []models.RemoteCandidate) *models.RemoteCandidate {
	for i := range candidates {
		if Evaluate(local, candidates[i]).Strong() {
			return &candidates[i]
		}
	}
	return nil
}

// WeakMatch returns the candidate with the smallest duration difference among those whose
// cleaned title contains every token of cleanTitle or whose artist contains every token of
// cleanArtist, excluding karaoke versions. It returns nil when nothing qualifies.
//
// For each candidate the artist loop stops at the first artist that matches or fails the
// karaoke check.
func WeakMatch(local *models.LocalTrack, candidates []models.RemoteCandidate, cleanTitle, cleanArtist string) *models.RemoteCandidate {
	titleToks := tokens(cleanTitle)
	artistToks := tokens(cleanArtist)

	best := weakSentinel
	var match *models.RemoteCandidate

	for i := range candidates {
		c := &candidates[i]

		titleMatch := containsAll(Clean(c.Title, FieldTitle), titleToks)
		artistMatch := true
		notKaraoke := albumNotKaraoke(*c)

		for _, artist := range c.Artists {
			name := Clean(artist, FieldArtist)
			artistMatch = containsAll(name, artistToks)
			notKaraoke = notKaraoke && !isKaraoke(name)
			if artistMatch || !notKaraoke {
				break
			}
		}

		delta := c.DurationDelta(local.Length)
		if (artistMatch || titleMatch) && delta < best && notKaraoke {
			best = delta
			match = c
		}
	}

	return match
}

// Nearest returns the non-karaoke candidate whose cleaned "title artist" key has the
// smallest edit distance to local's, with that distance. It is used to suggest a manual
// match for tracks left unresolved.
func Nearest(local *models.LocalTrack, candidates []models.RemoteCandidate) (*models.RemoteCandidate, int) {
	key := Clean(local.Title, FieldTitle) + " " + Clean(local.Artist, FieldArtist)

	var nearest *models.RemoteCandidate
	dist := -1
	for i := range candidates {
		c := &candidates[i]
		if !albumNotKaraoke(*c) {
			continue
		}
		artist := ""
		if len(c.Artists) > 0 {
			artist = c.Artists[0]
		}
		d := levenshtein.ComputeDistance(key, Clean(c.Title, FieldTitle)+" "+Clean(artist, FieldArtist))
		if dist < 0 || d < dist {
			nearest, dist = c, d
		}
	}
	return nearest, dist
}

func albumNotKaraoke(c models.RemoteCandidate) bool {
	return !isKaraoke(strings.ToLower(c.AlbumName))
}

func isKaraoke(s string) bool {
	for _, w := range karaokeWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
