package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

var spotifyScopes = []string{"user-read-playback-state", "user-modify-playback-state"}

// Spotify Web API player response, trimmed to what the device shows
type spotifyPlayer struct {
	ProgressMs *uint32 `json:"progress_ms"`
	IsPlaying  *bool   `json:"is_playing"`
	Item       *struct {
		Name       string `json:"name"`
		DurationMs uint32 `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album *struct {
			Images []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
	Device *struct {
		Name          string `json:"name"`
		VolumePercent *int   `json:"volume_percent"`
	} `json:"device"`
}

type spotifyClient struct {
	apiURL   string
	deviceID string
	http     *http.Client
}

func spotifyOAuthConfig(cfg SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

// newSpotifyClient builds an API client that refreshes its access token from
// the configured refresh token. Every request, token refreshes included, is
// bounded by the configured HTTP timeout.
func newSpotifyClient(cfg *Config, deviceID string) *spotifyClient {
	base := &http.Client{Timeout: cfg.HTTPTimeout()}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	src := spotifyOAuthConfig(cfg.Spotify).TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.Spotify.RefreshToken})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = cfg.HTTPTimeout()

	return &spotifyClient{
		apiURL:   strings.TrimRight(cfg.Spotify.APIURL, "/"),
		deviceID: deviceID,
		http:     client,
	}
}

// spotifyFields renders a filter as the fields= projection of GET /me/player.
func spotifyFields(f FieldFilter) string {
	var top, item, device []string
	if f.Has(FieldProgress) {
		top = append(top, "progress_ms")
	}
	if f.Has(FieldPlaying) {
		top = append(top, "is_playing")
	}
	if f.Has(FieldTrack) {
		item = append(item, "name")
	}
	if f.Has(FieldDuration) {
		item = append(item, "duration_ms")
	}
	if f.Has(FieldArtist) {
		item = append(item, "artists(name)")
	}
	if f.Has(FieldDevice) {
		device = append(device, "name")
	}
	if f.Has(FieldVolume) {
		device = append(device, "volume_percent")
	}
	if len(item) > 0 {
		top = append(top, "item("+strings.Join(item, ",")+")")
	}
	if len(device) > 0 {
		top = append(top, "device("+strings.Join(device, ",")+")")
	}
	return strings.Join(top, ",")
}

func (s *spotifyClient) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := s.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	if s.deviceID != "" {
		req.Header.Set("X-Device-Id", s.deviceID)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return resp, nil
}

func (s *spotifyClient) player(ctx context.Context, fields string) (int, *spotifyPlayer, error) {
	query := url.Values{}
	if fields != "" {
		query.Set("fields", fields)
	}
	resp, err := s.do(ctx, http.MethodGet, "/me/player", query)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}

	var p spotifyPlayer
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: decode player: %v", ErrTransport, err)
	}
	return resp.StatusCode, &p, nil
}

// PlaybackState maps GET /me/player. 204 means nothing is playing and comes
// back as a state with no fields set.
func (s *spotifyClient) PlaybackState(ctx context.Context, fields FieldFilter) (PlaybackState, error) {
	status, p, err := s.player(ctx, spotifyFields(fields))
	if err != nil {
		return PlaybackState{StatusCode: status}, err
	}

	st := PlaybackState{StatusCode: status}
	if p == nil {
		return st, nil
	}

	if p.ProgressMs != nil {
		st.ProgressMs = *p.ProgressMs
	}
	if p.IsPlaying != nil {
		st.IsPlaying = *p.IsPlaying
	}
	if p.Item != nil {
		st.TrackName = p.Item.Name
		st.DurationMs = p.Item.DurationMs
		// Only the lead artist fits the header line
		if len(p.Item.Artists) > 0 {
			st.ArtistName = p.Item.Artists[0].Name
		}
	}
	if p.Device != nil {
		st.DeviceName = p.Device.Name
		if p.Device.VolumePercent != nil {
			st.VolumePercent = *p.Device.VolumePercent
			st.HasVolume = true
		}
	}
	return st, nil
}

// AlbumArtURL returns the URL of images[sizeIndex], or ArtURLUnavailable.
// Spotify lists images largest first, so index 2 is the 64px thumbnail.
func (s *spotifyClient) AlbumArtURL(ctx context.Context, sizeIndex int) string {
	status, p, err := s.player(ctx, "item(album(images))")
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: [SPOTIFY] Album art lookup failed: %v", err))
		return ArtURLUnavailable
	}
	if status != http.StatusOK || p == nil || p.Item == nil || p.Item.Album == nil {
		return ArtURLUnavailable
	}
	images := p.Item.Album.Images
	if sizeIndex < 0 || sizeIndex >= len(images) || images[sizeIndex].URL == "" {
		return ArtURLUnavailable
	}
	return images[sizeIndex].URL
}

func (s *spotifyClient) command(ctx context.Context, method, path string, query url.Values) error {
	resp, err := s.do(ctx, method, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrTransport, method, path, resp.StatusCode)
	}
	return nil
}

func (s *spotifyClient) Play(ctx context.Context) error {
	return s.command(ctx, http.MethodPut, "/me/player/play", nil)
}

func (s *spotifyClient) Pause(ctx context.Context) error {
	return s.command(ctx, http.MethodPut, "/me/player/pause", nil)
}

func (s *spotifyClient) SkipNext(ctx context.Context) error {
	return s.command(ctx, http.MethodPost, "/me/player/next", nil)
}

func (s *spotifyClient) SkipPrevious(ctx context.Context) error {
	return s.command(ctx, http.MethodPost, "/me/player/previous", nil)
}

func (s *spotifyClient) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume %d out of range", percent)
	}
	query := url.Values{}
	query.Set("volume_percent", strconv.Itoa(percent))
	return s.command(ctx, http.MethodPut, "/me/player/volume", query)
}

func (s *spotifyClient) CurrentVolume(ctx context.Context) (int, error) {
	return readVolume(ctx, s)
}

// pairingURL is the authorisation page a user opens to link the device.
func pairingURL(cfg SpotifyConfig) string {
	return spotifyOAuthConfig(cfg).AuthCodeURL(APP_NAME)
}
