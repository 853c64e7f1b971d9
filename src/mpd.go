package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/fhs/gompd/mpd"
)

// mpdClient speaks to a local MPD server. It dials per call; the poll rate is
// low enough that a held connection would only need keepalive pings.
type mpdClient struct {
	address  string
	password string
	timeout  time.Duration
}

func newMPDClient(cfg MPDConfig, timeout time.Duration) *mpdClient {
	return &mpdClient{address: cfg.Address, password: cfg.Password, timeout: timeout}
}

type mpdDial struct {
	c   *mpd.Client
	err error
}

// dial gives up after the timeout or when ctx ends. gompd has no dialer hook,
// so an abandoned dial finishes in the background and closes its connection.
func (m *mpdClient) dial(ctx context.Context) (*mpd.Client, error) {
	done := make(chan mpdDial, 1)
	go func() {
		// If the password is empty, a regular mpd.Dial command will be issued.
		c, err := mpd.DialAuthenticated("tcp", m.address, m.password)
		done <- mpdDial{c, err}
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	var err error
	select {
	case r := <-done:
		if r.err != nil && r.c != nil {
			r.c.Close()
			r.c = nil
		}
		return r.c, r.err
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("dial %s: no answer after %v", m.address, m.timeout)
	}
	go func() {
		if r := <-done; r.c != nil {
			r.c.Close()
		}
	}()
	return nil, err
}

func (m *mpdClient) withClient(ctx context.Context, fn func(c *mpd.Client) error) error {
	c, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer c.Close()
	return fn(c)
}

// secondsToMs parses MPD's fractional-seconds fields
func secondsToMs(s string) uint32 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return uint32(math.Round(v * 1000))
}

// mapMPDState converts status and currentsong into a PlaybackState. A stopped
// player maps to 204, the same as an idle Spotify account.
func mapMPDState(status, song mpd.Attrs, fields FieldFilter, address string) PlaybackState {
	st := PlaybackState{StatusCode: 200}

	if fields.Has(FieldVolume) {
		if v, err := strconv.Atoi(status["volume"]); err == nil && v >= 0 {
			st.VolumePercent = v
			st.HasVolume = true
		}
	}

	state := status["state"]
	if state != "play" && state != "pause" {
		st.StatusCode = 204
		return st
	}

	if fields.Has(FieldPlaying) {
		st.IsPlaying = state == "play"
	}
	if fields.Has(FieldProgress) {
		st.ProgressMs = secondsToMs(status["elapsed"])
	}
	if fields.Has(FieldDuration) {
		d := status["duration"]
		if d == "" {
			d = song["duration"]
		}
		st.DurationMs = secondsToMs(d)
	}
	if fields.Has(FieldTrack) {
		st.TrackName = song["Title"]
	}
	if fields.Has(FieldArtist) {
		st.ArtistName = song["Artist"]
	}
	if fields.Has(FieldDevice) {
		st.DeviceName = "MPD @ " + address
	}
	return st
}

func (m *mpdClient) PlaybackState(ctx context.Context, fields FieldFilter) (PlaybackState, error) {
	var st PlaybackState
	err := m.withClient(ctx, func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return fmt.Errorf("%w: status: %v", ErrTransport, err)
		}
		song := mpd.Attrs{}
		if status["state"] == "play" || status["state"] == "pause" {
			song, err = c.CurrentSong()
			if err != nil {
				return fmt.Errorf("%w: current song: %v", ErrTransport, err)
			}
		}
		st = mapMPDState(status, song, fields, m.address)
		return nil
	})
	return st, err
}

// AlbumArtURL always reports no art. MPD serves covers over its own protocol,
// not HTTP.
func (m *mpdClient) AlbumArtURL(ctx context.Context, sizeIndex int) string {
	return ArtURLUnavailable
}

func (m *mpdClient) Play(ctx context.Context) error {
	return m.withClient(ctx, func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status["state"] == "pause" {
			return c.Pause(false)
		}
		return c.Play(-1)
	})
}

func (m *mpdClient) Pause(ctx context.Context) error {
	return m.withClient(ctx, func(c *mpd.Client) error {
		return c.Pause(true)
	})
}

func (m *mpdClient) SkipNext(ctx context.Context) error {
	return m.withClient(ctx, func(c *mpd.Client) error {
		return c.Next()
	})
}

func (m *mpdClient) SkipPrevious(ctx context.Context) error {
	return m.withClient(ctx, func(c *mpd.Client) error {
		return c.Previous()
	})
}

func (m *mpdClient) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume %d out of range", percent)
	}
	return m.withClient(ctx, func(c *mpd.Client) error {
		return c.SetVolume(percent)
	})
}

func (m *mpdClient) CurrentVolume(ctx context.Context) (int, error) {
	return readVolume(ctx, m)
}
