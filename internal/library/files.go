package library

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/nfnt/resize"
)

// DefaultArtworkSize bounds the width and height of embedded artwork.
const DefaultArtworkSize = 640

// TagReader reads the tag data of one audio file.
type TagReader interface {
	Read(path string) (*models.LocalTrack, error)
}

// TagWriter writes resolution results back into audio files.
type TagWriter interface {
	WriteURI(path string, uri models.URIState) error
	EmbedArtwork(path string, data []byte) error
}

// Files reads and writes tags of MP3 and FLAC files.
type Files struct {
	ArtworkSize uint // zero uses DefaultArtworkSize
}

// Read returns the tag data of path. Formats without a reader fail with [shared.ErrUnsupportedFormat].
func (Files) Read(path string) (*models.LocalTrack, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, path)
	}

	switch format {
	case FormatMP3:
		return readMP3(path)
	case FormatFLAC:
		return readFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s tags cannot be read: %s", shared.ErrUnsupportedFormat, format, path)
	}
}

// WriteURI stores a resolved URI in the file's tags. Other states remove the tag.
func (Files) WriteURI(path string, uri models.URIState) error {
	value := ""
	if uri.Status() == models.Resolved {
		value = uri.URI()
	}

	format, _ := FormatOf(path)
	switch format {
	case FormatMP3:
		return writeMP3URI(path, value)
	case FormatFLAC:
		return writeFLACURI(path, value)
	default:
		return fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, path)
	}
}

// EmbedArtwork replaces the file's front cover with data, scaled down to fit ArtworkSize.
func (f Files) EmbedArtwork(path string, data []byte) error {
	size := f.ArtworkSize
	if size == 0 {
		size = DefaultArtworkSize
	}

	img, mime, err := PrepareArtwork(data, size)
	if err != nil {
		return err
	}

	format, _ := FormatOf(path)
	switch format {
	case FormatMP3:
		return embedMP3Artwork(path, img, mime)
	case FormatFLAC:
		return embedFLACArtwork(path, img, mime)
	default:
		return fmt.Errorf("%w: %s", shared.ErrUnsupportedFormat, path)
	}
}

// PrepareArtwork decodes an image and, when it exceeds size in either dimension, scales it
// down and re-encodes it as JPEG. Images that already fit are returned unchanged.
func PrepareArtwork(data []byte, size uint) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: artwork is not an image: %v", shared.ErrInvalidInput, err)
	}

	b := img.Bounds()
	if uint(b.Dx()) <= size && uint(b.Dy()) <= size {
		return data, http.DetectContentType(data), nil
	}

	thumb := resize.Thumbnail(size, size, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("failed to encode artwork: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
