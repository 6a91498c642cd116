// package formatter exports sync reports (unresolved tracks, playlist differences and resolution
// history) to CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

// Format is a report output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or one of its common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension, with dot, of files written in f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Unresolved reports every track of playlists that has no remote URI.
func Unresolved(playlists []*models.Playlist, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return unresolvedCSV(playlists)
	case FormatMarkdown:
		return unresolvedMarkdown(playlists), nil
	case FormatJSON:
		out := map[string][]*models.LocalTrack{}
		for _, p := range playlists {
			out[p.Name] = unresolvedTracks(p)
		}
		return shared.MarshalJSON(out, true)
	default:
		return unresolvedText(playlists), nil
	}
}

// Differences reports the tracks missing from or extra to each remote playlist.
func Differences(diffs []models.Difference, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return differencesCSV(diffs)
	case FormatMarkdown:
		return differencesMarkdown(diffs), nil
	case FormatJSON:
		return shared.MarshalJSON(diffs, true)
	default:
		return differencesText(diffs), nil
	}
}

// Resolutions reports the outcome of each track of a resolve run.
func Resolutions(records []*models.Resolution, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return resolutionsCSV(records)
	case FormatJSON:
		return shared.MarshalJSON(records, true)
	case FormatMarkdown:
		var buf bytes.Buffer
		buf.WriteString("# Resolution history\n\n")
		buf.WriteString("| Playlist | Artist | Title | Outcome | URI |\n|---|---|---|---|---|\n")
		for _, r := range records {
			fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s |\n",
				escapeCell(r.Playlist), escapeCell(r.Artist), escapeCell(r.Title), r.Outcome, r.URI)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		for _, r := range records {
			fmt.Fprintf(&buf, "[%s] %s: %s - %s", r.Outcome, r.Playlist, r.Artist, r.Title)
			if r.URI != "" {
				fmt.Fprintf(&buf, " (%s)", r.URI)
			}
			if r.Error != "" {
				fmt.Fprintf(&buf, " error: %s", r.Error)
			}
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
}

// WriteReport writes data to dir under a file name derived from name and format.
// The directory is created when missing.
func WriteReport(dir, name string, format Format, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, shared.Slugify(name)+format.Ext())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

func unresolvedTracks(p *models.Playlist) []*models.LocalTrack {
	var out []*models.LocalTrack
	for _, t := range p.Tracks {
		if t.URI.Status() != models.Resolved {
			out = append(out, t)
		}
	}
	return out
}

func unresolvedCSV(playlists []*models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Playlist", "Position", "Artist", "Title", "Album", "Length", "Status", "Path"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range playlists {
		for _, t := range unresolvedTracks(p) {
			position := ""
			if t.Position != nil {
				position = strconv.Itoa(*t.Position + 1)
			}
			record := []string{
				p.Name,
				position,
				t.Artist,
				t.Title,
				t.Album,
				shared.FormatDuration(t.Length),
				t.URI.Status().String(),
				t.Path,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	return flush(writer, &buf)
}

func unresolvedMarkdown(playlists []*models.Playlist) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Unresolved tracks\n\n")

	for _, p := range playlists {
		tracks := unresolvedTracks(p)
		if len(tracks) == 0 {
			continue
		}

		fmt.Fprintf(&buf, "## %s\n\n", p.Name)
		fmt.Fprintf(&buf, "**Unresolved**: %d of %d\n\n", len(tracks), len(p.Tracks))
		for _, t := range tracks {
			albumPart := ""
			if t.Album != "" {
				albumPart = fmt.Sprintf(" (%s)", t.Album)
			}
			fmt.Fprintf(&buf, "- %s - %s%s [%s] _%s_\n", t.Artist, t.Title, albumPart, shared.FormatDuration(t.Length), t.URI.Status())
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func unresolvedText(playlists []*models.Playlist) []byte {
	var buf bytes.Buffer
	for _, p := range playlists {
		tracks := unresolvedTracks(p)
		if len(tracks) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "Playlist: %s (%d unresolved)\n", p.Name, len(tracks))
		for i, t := range tracks {
			fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.Artist, t.Title)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func differencesCSV(diffs []models.Difference) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Playlist", "Change", "Artist", "Title", "Album", "URI"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, d := range diffs {
		for _, t := range d.Missing {
			if err := writer.Write([]string{d.Playlist, "missing", t.Artist, t.Title, t.Album, t.URI.URI()}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		for _, c := range d.Extra {
			record := []string{d.Playlist, "extra", strings.Join(c.Artists, ", "), c.Title, c.AlbumName, c.URI}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	return flush(writer, &buf)
}

func differencesMarkdown(diffs []models.Difference) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Playlist differences\n\n")

	for _, d := range diffs {
		fmt.Fprintf(&buf, "## %s\n\n", d.Playlist)
		if d.RemoteURL != "" {
			fmt.Fprintf(&buf, "**Remote**: %s\n\n", d.RemoteURL)
		}
		if d.Empty() {
			buf.WriteString("In sync.\n\n")
			continue
		}

		if len(d.Missing) > 0 {
			fmt.Fprintf(&buf, "### Missing remotely (%d)\n\n", len(d.Missing))
			for _, t := range d.Missing {
				fmt.Fprintf(&buf, "- %s - %s\n", t.Artist, t.Title)
			}
			buf.WriteByte('\n')
		}
		if len(d.Extra) > 0 {
			fmt.Fprintf(&buf, "### Extra remotely (%d)\n\n", len(d.Extra))
			for _, c := range d.Extra {
				fmt.Fprintf(&buf, "- %s - %s\n", strings.Join(c.Artists, ", "), c.Title)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func differencesText(diffs []models.Difference) []byte {
	var buf bytes.Buffer
	for _, d := range diffs {
		fmt.Fprintf(&buf, "Playlist: %s (%d missing, %d extra)\n", d.Playlist, len(d.Missing), len(d.Extra))
		for _, t := range d.Missing {
			fmt.Fprintf(&buf, "  - %s - %s\n", t.Artist, t.Title)
		}
		for _, c := range d.Extra {
			fmt.Fprintf(&buf, "  + %s - %s\n", strings.Join(c.Artists, ", "), c.Title)
		}
	}
	return buf.Bytes()
}

func resolutionsCSV(records []*models.Resolution) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run", "Playlist", "Artist", "Title", "Album", "Outcome", "URI", "Error", "Path", "Created"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		record := []string{
			r.RunID,
			r.Playlist,
			r.Artist,
			r.Title,
			r.Album,
			string(r.Outcome),
			r.URI,
			r.Error,
			r.Path,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	return flush(writer, &buf)
}

func flush(writer *csv.Writer, buf *bytes.Buffer) ([]byte, error) {
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
