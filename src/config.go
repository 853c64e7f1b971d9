package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BACKEND_SPOTIFY = "spotify"
	BACKEND_MPD     = "mpd"
)

type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	RedirectURI  string `toml:"redirect_uri"`
	APIURL       string `toml:"api_url"`
	TokenURL     string `toml:"token_url"`
	AuthURL      string `toml:"auth_url"`
}

type MPDConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
}

type DisplayConfig struct {
	Device string `toml:"device"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type InputConfig struct {
	Device string `toml:"device"`
}

// Config is the on-disk device configuration.
type Config struct {
	Backend string        `toml:"backend"`
	Spotify SpotifyConfig `toml:"spotify"`
	MPD     MPDConfig     `toml:"mpd"`
	Display DisplayConfig `toml:"display"`
	Input   InputConfig   `toml:"input"`

	PollIntervalMs   int  `toml:"poll_interval_ms"`
	FrameIntervalMs  int  `toml:"frame_interval_ms"`
	HTTPTimeoutMs    int  `toml:"http_timeout_ms"`
	ArtSizeIndex     int  `toml:"art_size_index"`
	VolumeStep       int  `toml:"volume_step"`
	UnmuteVolume     int  `toml:"unmute_volume"`
	PublishWaitMs    int  `toml:"publish_wait_ms"`
	DrainWaitMs      int  `toml:"drain_wait_ms"`
	MaxArtBytes      int  `toml:"max_art_bytes"`
	UTCOffsetSeconds int  `toml:"utc_offset_seconds"`
	AllowInsecureArt bool `toml:"allow_insecure_art"`

	LogPath      string `toml:"log_path"`
	LogToFile    bool   `toml:"log_to_file"`
	Debug        bool   `toml:"debug"`
	SettingsPath string `toml:"settings_path"`
}

func defaultConfig() Config {
	return Config{
		Backend: BACKEND_SPOTIFY,
		Spotify: SpotifyConfig{
			RedirectURI: "http://localhost:8888/callback",
			APIURL:      "https://api.spotify.com/v1",
			TokenURL:    "https://accounts.spotify.com/api/token",
			AuthURL:     "https://accounts.spotify.com/authorize",
		},
		MPD: MPDConfig{Address: "localhost:6600"},
		Display: DisplayConfig{
			Device: "/dev/fb0",
			Width:  DEFAULT_SCREEN_WIDTH,
			Height: DEFAULT_SCREEN_HEIGHT,
		},
		Input:            InputConfig{Device: "/dev/input/event0"},
		PollIntervalMs:   POLL_INTERVAL_MS,
		FrameIntervalMs:  FRAME_INTERVAL_MS,
		HTTPTimeoutMs:    ART_FETCH_TIMEOUT_MS,
		ArtSizeIndex:     2,
		VolumeStep:       VOLUME_STEP,
		UnmuteVolume:     UNMUTE_VOLUME,
		PublishWaitMs:    PUBLISH_WAIT_MS,
		DrainWaitMs:      DRAIN_WAIT_MS,
		MaxArtBytes:      MAX_ART_BYTES,
		UTCOffsetSeconds: 28800,
		LogPath:          LOG_PATH,
		LogToFile:        true,
		SettingsPath:     SETTINGS_PATH,
	}
}

// defaultConfigPath follows XDG: $XDG_CONFIG_HOME/spotideck/config.toml
func defaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configHome, APP_NAME, "config.toml")
}

// loadConfig reads the TOML file at path over the defaults.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := defaultConfig()
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BACKEND_SPOTIFY:
		if c.Spotify.ClientID == "" {
			return errors.New("spotify.client_id is required")
		}
	case BACKEND_MPD:
		if c.MPD.Address == "" {
			return errors.New("mpd.address is required")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.PollIntervalMs <= 0 {
		return errors.New("poll_interval_ms must be positive")
	}
	if c.FrameIntervalMs <= 0 {
		return errors.New("frame_interval_ms must be positive")
	}
	if c.HTTPTimeoutMs <= 0 {
		return errors.New("http_timeout_ms must be positive")
	}
	if c.PublishWaitMs < 0 || c.DrainWaitMs < 0 {
		return errors.New("guard waits cannot be negative")
	}
	if c.VolumeStep < 1 || c.VolumeStep > 100 {
		return errors.New("volume_step must be within 1..100")
	}
	if c.UnmuteVolume < 1 || c.UnmuteVolume > 100 {
		return errors.New("unmute_volume must be within 1..100")
	}
	if c.MaxArtBytes <= 0 || c.MaxArtBytes > MAX_ART_BYTES {
		return fmt.Errorf("max_art_bytes must be within 1..%d", MAX_ART_BYTES)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return errors.New("display size must be positive")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

// needsPairing reports whether the device has no credentials to poll with yet.
func (c *Config) needsPairing() bool {
	return c.Backend == BACKEND_SPOTIFY && c.Spotify.RefreshToken == ""
}
