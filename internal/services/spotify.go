// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/api"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	SpotifyBaseURL  = "https://api.spotify.com/v1"

	// batch limits of the Web API
	trackLookupLimit = 50
	playlistLimit    = 50
	playlistEditMax  = 100
)

// DefaultScopes are the scopes needed to read and modify the user's playlists.
var DefaultScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-library-read",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Href        string         `json:"href"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	DiscNumber  int             `json:"disc_number"`
	IsLocal     bool            `json:"is_local"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylist represents a Spotify playlist. Tracks.Items is empty for simplified
// playlist objects returned in lists.
type SpotifyPlaylist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Owner        Owner             `json:"owner"`
	Public       bool              `json:"public"`
	Tracks       playlistTracks    `json:"tracks"`
	ExternalURLs map[string]string `json:"external_urls"`
	URI          string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for
// items that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// ParseTrack converts a track object into a [models.RemoteCandidate], keeping the largest album image.
func ParseTrack(t SpotifyTrack) models.RemoteCandidate {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	var image string
	best := -1
	for _, img := range t.Album.Images {
		if area := img.Height * img.Width; area > best {
			best, image = area, img.URL
		}
	}

	return models.RemoteCandidate{
		ID:               t.ID,
		Title:            t.Name,
		Artists:          artists,
		AlbumName:        t.Album.Name,
		AlbumReleaseDate: t.Album.ReleaseDate,
		DurationMS:       t.DurationMS,
		URI:              t.URI,
		TrackNumber:      t.TrackNumber,
		ImageURL:         image,
	}
}

// ParsePlaylist converts a playlist object into a [models.RemotePlaylist].
func ParsePlaylist(p SpotifyPlaylist) *models.RemotePlaylist {
	out := &models.RemotePlaylist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		URL:         p.ExternalURLs["spotify"],
		URI:         p.URI,
		OwnerID:     p.Owner.ID,
		Public:      p.Public,
		TrackCount:  p.Tracks.Total,
	}
	for _, item := range p.Tracks.Items {
		if item.Track == nil || item.Track.IsLocal {
			continue
		}
		out.Tracks = append(out.Tracks, ParseTrack(*item.Track))
	}
	return out
}

// SpotifyService implements [Service] for the Spotify Web API.
type SpotifyService struct {
	req    *api.Requester
	auth   Authority
	base   string
	logger *log.Logger
	user   *SpotifyUser
}

// Authority is the token authority backing the service's requests.
type Authority interface {
	Authorize(ctx context.Context, forceReload, forceNew bool) (http.Header, error)
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	BaseURL string // defaults to SpotifyBaseURL
	Logger  *log.Logger
}

// NewSpotifyService creates a new Spotify service sending requests through req.
// authority may be nil when the requester's headers need no explicit authorization step.
func NewSpotifyService(req *api.Requester, authority Authority, opts SpotifyOpts) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = SpotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SpotifyService{
		req:    req,
		auth:   authority,
		base:   strings.TrimSuffix(opts.BaseURL, "/"),
		logger: opts.Logger,
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authorize runs the token authority, dropping the cached user profile.
func (s *SpotifyService) Authorize(ctx context.Context, forceReload, forceNew bool) error {
	if s.auth == nil {
		return nil
	}
	if _, err := s.auth.Authorize(ctx, forceReload, forceNew); err != nil {
		return err
	}
	s.user = nil
	return nil
}

// Tester returns a live token check against /me, accepting responses that describe a user.
func (s *SpotifyService) Tester(client *http.Client) func(ctx context.Context, header http.Header) bool {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, header http.Header) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/me", nil)
		if err != nil {
			return false
		}
		req.Header = header.Clone()

		resp, err := client.Do(req)
		if err != nil {
			s.logger.Warn("token test request failed", "error", err)
			return false
		}
		defer resp.Body.Close()

		var user SpotifyUser
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&user) != nil {
			return false
		}
		return user.Href != "" && user.DisplayName != ""
	}
}

// Me returns the authorised user's profile.
func (s *SpotifyService) Me(ctx context.Context) (*SpotifyUser, error) {
	if s.user != nil {
		return s.user, nil
	}

	resp, err := s.req.Get(ctx, s.base+"/me", &api.Options{SkipCache: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	var user SpotifyUser
	if err := api.Decode(resp, &user); err != nil {
		return nil, err
	}
	s.user = &user
	return &user, nil
}

// Search runs a free text search, returning results typed as tracks.
func (s *SpotifyService) Search(ctx context.Context, query, kind string, limit int) ([]models.RemoteCandidate, error) {
	if kind == "" {
		kind = TypeTrack
	}
	limit = min(max(limit, 1), 50)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", kind)
	params.Set("limit", strconv.Itoa(limit))

	resp, err := s.req.Get(ctx, s.base+"/search", &api.Options{Params: params})
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", query, err)
	}

	var page struct {
		Items []SpotifyTrack `json:"items"`
	}
	if err := api.Decode(resp[kind+"s"], &page); err != nil {
		return nil, err
	}

	results := make([]models.RemoteCandidate, 0, len(page.Items))
	for _, t := range page.Items {
		results = append(results, ParseTrack(t))
	}
	return results, nil
}

// Tracks looks up tracks in batches of 50. Ids the API does not know are dropped.
func (s *SpotifyService) Tracks(ctx context.Context, ids []string) ([]models.RemoteCandidate, error) {
	values := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := ParseID(raw)
		if !id.Valid() || (id.Type != "" && id.Type != TypeTrack) {
			return nil, fmt.Errorf("%w: not a track id %q", shared.ErrInvalidInput, raw)
		}
		values = append(values, id.Value)
	}

	items, err := s.req.Batch(ctx, s.base+"/tracks", values, trackLookupLimit, trackLookupLimit, "tracks", nil)
	if err != nil {
		return nil, fmt.Errorf("track lookup failed: %w", err)
	}

	var tracks []*SpotifyTrack
	if err := api.Decode(items, &tracks); err != nil {
		return nil, err
	}

	results := make([]models.RemoteCandidate, 0, len(tracks))
	for _, t := range tracks {
		if t != nil {
			results = append(results, ParseTrack(*t))
		}
	}
	return results, nil
}

// Playlists returns every playlist the user follows or owns.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.RemotePlaylist, error) {
	params := url.Values{"limit": {strconv.Itoa(playlistLimit)}}
	opts := &api.Options{Params: params, SkipCache: true}

	page, err := s.req.Get(ctx, s.base+"/me/playlists", opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	if err := s.req.Paginate(ctx, page, opts); err != nil {
		return nil, err
	}

	var items []SpotifyPlaylist
	if err := api.Decode(page["items"], &items); err != nil {
		return nil, err
	}

	out := make([]models.RemotePlaylist, 0, len(items))
	for _, p := range items {
		out = append(out, *ParsePlaylist(p))
	}
	return out, nil
}

// PlaylistByName returns the first of the user's playlists named name, ignoring case.
func (s *SpotifyService) PlaylistByName(ctx context.Context, name string) (*models.RemotePlaylist, error) {
	playlists, err := s.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if strings.EqualFold(playlists[i].Name, name) {
			return &playlists[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

// Playlist returns a playlist with all of its tracks.
func (s *SpotifyService) Playlist(ctx context.Context, id string) (*models.RemotePlaylist, error) {
	pid, err := playlistID(id)
	if err != nil {
		return nil, err
	}

	opts := &api.Options{SkipCache: true}
	resp, err := s.req.Get(ctx, s.base+"/playlists/"+pid, opts)
	if err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	if tracks, ok := resp["tracks"].(map[string]any); ok {
		if err := s.req.Paginate(ctx, tracks, opts); err != nil {
			return nil, err
		}
	}

	var p SpotifyPlaylist
	if err := api.Decode(resp, &p); err != nil {
		return nil, err
	}
	return ParsePlaylist(p), nil
}

// CreatePlaylist creates a playlist for the authorised user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.RemotePlaylist, error) {
	user, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"name": name, "description": description, "public": public}
	resp, err := s.req.Post(ctx, s.base+"/users/"+url.PathEscape(user.ID)+"/playlists", &api.Options{JSON: body})
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	var p SpotifyPlaylist
	if err := api.Decode(resp, &p); err != nil {
		return nil, err
	}
	s.logger.Info("created playlist", "name", p.Name, "id", p.ID)
	return ParsePlaylist(p), nil
}

// AddTracks appends uris in order, in batches of 100.
func (s *SpotifyService) AddTracks(ctx context.Context, id string, uris []string, skipDupes bool) (int, error) {
	pid, err := playlistID(id)
	if err != nil {
		return 0, err
	}

	if skipDupes {
		current, err := s.Playlist(ctx, pid)
		if err != nil {
			return 0, err
		}
		seen := make(map[string]bool, len(current.Tracks))
		for _, uri := range current.URIs() {
			seen[uri] = true
		}

		var fresh []string
		for _, uri := range uris {
			if !seen[uri] {
				seen[uri] = true
				fresh = append(fresh, uri)
			}
		}
		uris = fresh
	}

	added := 0
	for _, chunk := range api.Chunk(uris, playlistEditMax, playlistEditMax) {
		if _, err := s.req.Post(ctx, s.base+"/playlists/"+pid+"/tracks", &api.Options{JSON: map[string]any{"uris": chunk}}); err != nil {
			return added, fmt.Errorf("failed to add tracks: %w", err)
		}
		added += len(chunk)
	}

	s.logger.Debug("added tracks", "playlist", pid, "count", added)
	return added, nil
}

// ClearTracks removes uris from the playlist in batches of 100. A nil uris removes every track.
func (s *SpotifyService) ClearTracks(ctx context.Context, id string, uris []string) (int, error) {
	pid, err := playlistID(id)
	if err != nil {
		return 0, err
	}

	if uris == nil {
		current, err := s.Playlist(ctx, pid)
		if err != nil {
			return 0, err
		}
		uris = current.URIs()
	}

	removed := 0
	for _, chunk := range api.Chunk(uris, playlistEditMax, playlistEditMax) {
		tracks := make([]map[string]string, 0, len(chunk))
		for _, uri := range chunk {
			tracks = append(tracks, map[string]string{"uri": uri})
		}
		if _, err := s.req.Delete(ctx, s.base+"/playlists/"+pid+"/tracks", &api.Options{JSON: map[string]any{"tracks": tracks}}); err != nil {
			return removed, fmt.Errorf("failed to remove tracks: %w", err)
		}
		removed += len(chunk)
	}
	return removed, nil
}

// DeletePlaylist unfollows the playlist.
func (s *SpotifyService) DeletePlaylist(ctx context.Context, id string) error {
	pid, err := playlistID(id)
	if err != nil {
		return err
	}
	if _, err := s.req.Delete(ctx, s.base+"/playlists/"+pid+"/followers", nil); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return nil
}

func playlistID(value string) (string, error) {
	id := ParseID(value)
	if !id.Valid() || (id.Type != "" && id.Type != TypePlaylist) {
		return "", fmt.Errorf("%w: not a playlist id %q", shared.ErrInvalidInput, value)
	}
	return id.Value, nil
}

