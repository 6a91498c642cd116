package library

import (
	"fmt"
	"strings"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

func readFLAC(path string) (*models.LocalTrack, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrNoTags, path, err)
	}

	comments := map[string]string{}
	track := &models.LocalTrack{Path: path}

	for _, meta := range f.Meta {
		switch meta.Type {
		case flac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", shared.ErrNoTags, path, err)
			}
			for _, c := range cmts.Comments {
				k, v, ok := strings.Cut(c, "=")
				// vorbis field names are case insensitive; the first value of a field wins
				if key := strings.ToUpper(k); ok && comments[key] == "" {
					comments[key] = v
				}
			}
		case flac.Picture:
			track.HasArtwork = true
		}
	}

	keys := tagKeys[FormatFLAC]
	get := func(k string) string { return comments[k] }

	track.Title = first(keys.Title, get)
	track.Artist = first(keys.Artist, get)
	track.Album = first(keys.Album, get)
	track.TrackNumber = trackNumber(first(keys.Track, get))
	track.Year = leadingNumber(first(keys.Year, get), 4)
	if uri := strings.TrimSpace(comments[URITag]); uri != "" {
		track.URI = models.ResolvedURI(uri)
	}

	if info, err := f.GetStreamInfo(); err == nil && info.SampleRate > 0 {
		track.Length = float64(info.SampleCount) / float64(info.SampleRate)
	}
	return track, nil
}

// writeFLACURI replaces the URI comment. An empty uri removes it.
func writeFLACURI(path, uri string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	idx := -1
	cmts := flacvorbis.New()
	for i, meta := range f.Meta {
		if meta.Type == flac.VorbisComment {
			if cmts, err = flacvorbis.ParseFromMetaDataBlock(*meta); err != nil {
				return fmt.Errorf("failed to parse comments of %s: %w", path, err)
			}
			idx = i
			break
		}
	}

	kept := cmts.Comments[:0]
	for _, c := range cmts.Comments {
		if k, _, _ := strings.Cut(c, "="); !strings.EqualFold(k, URITag) {
			kept = append(kept, c)
		}
	}
	cmts.Comments = kept

	if uri != "" {
		if err := cmts.Add(URITag, uri); err != nil {
			return fmt.Errorf("failed to add uri comment: %w", err)
		}
	}

	block := cmts.Marshal()
	if idx >= 0 {
		f.Meta[idx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save tags of %s: %w", path, err)
	}
	return nil
}

func embedFLACArtwork(path string, data []byte, mime string) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", data, mime)
	if err != nil {
		return fmt.Errorf("failed to create picture metadata: %w", err)
	}

	meta := f.Meta[:0]
	for _, m := range f.Meta {
		if m.Type != flac.Picture {
			meta = append(meta, m)
		}
	}
	block := picture.Marshal()
	f.Meta = append(meta, &block)

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save artwork to %s: %w", path, err)
	}
	return nil
}
