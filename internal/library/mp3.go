package library

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

func readMP3(path string) (*models.LocalTrack, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrNoTags, path, err)
	}
	defer tag.Close()

	keys := tagKeys[FormatMP3]
	get := func(id string) string { return tag.GetTextFrame(id).Text }

	track := &models.LocalTrack{
		Path:        path,
		Title:       first(keys.Title, get),
		Artist:      first(keys.Artist, get),
		Album:       first(keys.Album, get),
		TrackNumber: trackNumber(first(keys.Track, get)),
		Year:        leadingNumber(first(keys.Year, get), 4),
		HasArtwork:  len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0,
	}

	if uri := mp3URI(tag); uri != "" {
		track.URI = models.ResolvedURI(uri)
	}

	if ms, err := strconv.ParseFloat(strings.TrimSpace(get("TLEN")), 64); err == nil && ms > 0 {
		track.Length = ms / 1000
	} else if length, err := mp3Duration(path); err == nil {
		track.Length = length
	}
	return track, nil
}

func mp3URI(tag *id3v2.Tag) string {
	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		if udf, ok := f.(id3v2.UserDefinedTextFrame); ok && strings.EqualFold(udf.Description, URITag) {
			return strings.TrimSpace(udf.Value)
		}
	}
	return ""
}

// writeMP3URI replaces the URI frame. An empty uri removes it.
func writeMP3URI(path, uri string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer tag.Close()

	id := tag.CommonID("User defined text information frame")
	frames := tag.GetFrames(id)
	tag.DeleteFrames(id)
	for _, f := range frames {
		if udf, ok := f.(id3v2.UserDefinedTextFrame); ok && !strings.EqualFold(udf.Description, URITag) {
			tag.AddUserDefinedTextFrame(udf)
		}
	}

	if uri != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: URITag,
			Value:       uri,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags of %s: %w", path, err)
	}
	return nil
}

func embedMP3Artwork(path string, data []byte, mime string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer tag.Close()

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mime,
		PictureType: id3v2.PTFrontCover,
		Description: "Front Cover",
		Picture:     data,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save artwork to %s: %w", path, err)
	}
	return nil
}
