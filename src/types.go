package main

import "time"

// App metadata
const (
	APP_NAME    = "spotideck"
	APP_VERSION = "0.3.0"
	APP_AUTHOR  = "Danilo Fragoso"
)

// Default panel geometry (portrait ST7789-class TFT)
const (
	DEFAULT_SCREEN_WIDTH  = 240
	DEFAULT_SCREEN_HEIGHT = 320
)

// Album art canvas: fixed 64x64, 16-bit packed colour
const (
	ART_WIDTH     = 64
	ART_HEIGHT    = 64
	ART_BPP       = 2
	ART_BUF_BYTES = ART_WIDTH * ART_HEIGHT * ART_BPP
)

// Album art transport limits
const (
	MAX_ART_BYTES        = 100000
	ART_FETCH_TIMEOUT_MS = 5000
	ART_READ_RETRIES     = 50
	ART_SCHEME           = "https://"
)

// Polling and frame cadence
const (
	POLL_INTERVAL_MS  = 1000
	FRAME_INTERVAL_MS = 33
	TICK_INTERVAL_MS  = 1000
)

// Guard waits
const (
	PUBLISH_WAIT_MS = 10
	DRAIN_WAIT_MS   = 0
)

// Volume actions
const (
	VOLUME_STEP   = 2
	UNMUTE_VOLUME = 20
)

// Now-playing layout (at 240x320)
const (
	ART_Y          = 40
	ART_SCALE      = 2
	HEADER_HEIGHT  = 28
	PROGRESS_BAR_Y = 268
	PROGRESS_BAR_H = 6
	SIDE_PAD       = 12
)

// PlaybackSample is one successful progress reading from the remote service.
// It is replaced wholesale, never mutated after construction.
type PlaybackSample struct {
	ProgressMs  uint32
	DurationMs  uint32
	IsPlaying   bool
	SampledAtMs uint32
}

// TrackMetadata is the last published value of each text field.
type TrackMetadata struct {
	Artist     string
	Title      string
	DeviceName string
}

// ImageDescriptor describes raw pixels handed to the presentation layer.
type ImageDescriptor struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte
	Length int
}

type PixelFormat int

const (
	PixelFormatRGB565 PixelFormat = iota
	PixelFormatRGB565Swapped
)

// --- Main application ---

type SpotiDeck struct {
	Config   *Config
	Settings *Settings

	Theme Theme

	Service  PlaybackService
	Channel  *StateChannel
	Commands *CommandQueue
	Fetcher  *artFetcher
	Alloc    *pixelAllocator
	Clock    Clock

	// Presentation
	FB          *frameBuffer
	Panel       *ggPanel
	Display     Display
	RefreshChan chan struct{}

	Input Input

	StartedAt time.Time
}
