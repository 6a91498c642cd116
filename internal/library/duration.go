package library

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var errNoFrame = errors.New("no mpeg audio frame found")

// mpeg1 layer III bitrates in kbps, indexed by the header's bitrate bits
var (
	bitratesV1 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitratesV2 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
	sampleRate = [3]int{44100, 48000, 32000}
)

// mp3Duration estimates the playing time of an MP3 file from its first audio frame: the
// frame count of a Xing/Info header when present, the file size and bitrate otherwise.
func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	start, err := id3Size(f)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}

	r := bufio.NewReader(f)
	offset := start
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errNoFrame
		}
		offset++
		if b != 0xFF {
			continue
		}

		next, err := r.Peek(3)
		if err != nil {
			return 0, errNoFrame
		}
		if next[0]&0xE0 != 0xE0 {
			continue
		}

		h := binary.BigEndian.Uint32([]byte{0xFF, next[0], next[1], next[2]})
		version := (h >> 19) & 0x3 // 3 = MPEG1, 2 = MPEG2, 0 = MPEG2.5
		layer := (h >> 17) & 0x3   // 1 = layer III
		bitrateIdx := (h >> 12) & 0xF
		rateIdx := (h >> 10) & 0x3
		mode := (h >> 6) & 0x3
		if version == 1 || layer != 1 || rateIdx == 3 || bitrateIdx == 0 || bitrateIdx == 15 {
			continue
		}

		rate := sampleRate[rateIdx]
		bitrate := bitratesV1[bitrateIdx]
		samples := 1152
		sideInfo := 32
		switch version {
		case 2:
			rate /= 2
			bitrate = bitratesV2[bitrateIdx]
			samples, sideInfo = 576, 17
		case 0:
			rate /= 4
			bitrate = bitratesV2[bitrateIdx]
			samples, sideInfo = 576, 17
		}
		if mode == 3 {
			if version == 3 {
				sideInfo = 17
			} else {
				sideInfo = 9
			}
		}

		// the Xing header sits after the 4 byte frame header and the side information
		frame := make([]byte, 3+sideInfo+12)
		if n, _ := io.ReadFull(r, frame); n == len(frame) {
			tag := string(frame[3+sideInfo : 3+sideInfo+4])
			flags := binary.BigEndian.Uint32(frame[3+sideInfo+4:])
			if (tag == "Xing" || tag == "Info") && flags&0x1 != 0 {
				frames := binary.BigEndian.Uint32(frame[3+sideInfo+8:])
				return float64(frames) * float64(samples) / float64(rate), nil
			}
		}

		audio := info.Size() - (offset - 1)
		return float64(audio) * 8 / float64(bitrate*1000), nil
	}
}

// id3Size returns the byte length of a leading ID3v2 tag, or zero.
func id3Size(r io.ReadSeeker) (int64, error) {
	header := make([]byte, 10)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header[:3]) != "ID3" {
		return 0, nil
	}

	size := int64(header[6]&0x7F)<<21 | int64(header[7]&0x7F)<<14 | int64(header[8]&0x7F)<<7 | int64(header[9]&0x7F)
	size += 10
	if header[5]&0x10 != 0 {
		size += 10
	}
	return size, nil
}
