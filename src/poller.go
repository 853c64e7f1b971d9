package main

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type CycleKind int

const (
	CycleCommands CycleKind = iota
	CycleData
	CycleFailed
)

func (k CycleKind) String() string {
	switch k {
	case CycleCommands:
		return "commands"
	case CycleData:
		return "data"
	}
	return "failed"
}

// Poller is the producer context. It owns all network I/O and decoding, and
// only touches shared state through the channel and the command queue.
type Poller struct {
	svc     PlaybackService
	ch      *StateChannel
	queue   *CommandQueue
	fetcher *artFetcher
	clock   Clock

	interval     time.Duration
	artSizeIndex int
	commands     CommandConfig

	lastTitle  string
	lastArtURL string
}

func NewPoller(cfg *Config, svc PlaybackService, ch *StateChannel, queue *CommandQueue, fetcher *artFetcher, clock Clock) *Poller {
	return &Poller{
		svc:          svc,
		ch:           ch,
		queue:        queue,
		fetcher:      fetcher,
		clock:        clock,
		interval:     cfg.PollInterval(),
		artSizeIndex: cfg.ArtSizeIndex,
		commands: CommandConfig{
			VolumeStep:   cfg.VolumeStep,
			UnmuteVolume: cfg.UnmuteVolume,
		},
	}
}

// Run polls until ctx is done. A cycle always runs to completion; ctx is only
// checked at the wait between cycles.
func (p *Poller) Run(ctx context.Context) error {
	logMsg(fmt.Sprintf("INFO: [POLL] Polling every %v", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.runCycle(ctx)

		select {
		case <-ctx.Done():
			logMsg("INFO: [POLL] Stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle either executes pending commands or polls, never both.
func (p *Poller) runCycle(ctx context.Context) CycleKind {
	if p.queue.Pending() {
		set := p.queue.Drain()
		for _, err := range executeCommands(ctx, set, p.svc, p.commands) {
			logMsg(fmt.Sprintf("WARNING: [CMD] %v", err))
		}
		return CycleCommands
	}

	st, err := p.svc.PlaybackState(ctx, FieldsNowPlaying)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: [POLL] Playback state failed: %v", err))
		return CycleFailed
	}
	if st.StatusCode == http.StatusNoContent {
		logMsg("DEBUG: [POLL] Nothing playing")
		return CycleFailed
	}
	if st.StatusCode != http.StatusOK {
		logMsg(fmt.Sprintf("WARNING: [POLL] Playback state returned %d", st.StatusCode))
		return CycleFailed
	}
	receivedAt := p.clock.NowMs()

	u := TrackUpdate{
		Artist: st.ArtistName,
		Title:  st.TrackName,
		Device: st.DeviceName,
	}
	// Zero progress doubles as "no data yet", so a track sitting at exactly
	// 0 ms keeps the previous sample.
	if st.ProgressMs > 0 && st.DurationMs > 0 {
		u.Sample = &PlaybackSample{
			ProgressMs:  st.ProgressMs,
			DurationMs:  st.DurationMs,
			IsPlaying:   st.IsPlaying,
			SampledAtMs: receivedAt,
		}
	}

	if !p.ch.Publish(u) {
		logMsg(fmt.Sprintf("DEBUG: [POLL] Update dropped: %v", p.ch.publish.contended()))
		return CycleData
	}

	if st.TrackName != "" && st.TrackName != p.lastTitle {
		logMsg(fmt.Sprintf("[POLL] Now playing: %s - %s", st.ArtistName, st.TrackName))
		p.lastTitle = st.TrackName
		p.refreshArt(ctx)
	}
	return CycleData
}

// refreshArt runs the buffer swap: take the live art, decode the replacement
// with no guard held, then publish it and free the old one. On failure the old
// art goes back into the channel.
func (p *Poller) refreshArt(ctx context.Context) {
	url := p.svc.AlbumArtURL(ctx, p.artSizeIndex)
	if url == p.lastArtURL {
		logMsg("DEBUG: [ART] Same album, keeping current art")
		return
	}

	old := p.ch.TakeArt()

	art, err := p.fetcher.fetchAndDecode(ctx, url)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: [ART] %v", err))
		if !p.ch.RestoreArt(old) {
			old.Release()
		}
		return
	}

	p.ch.PublishArt(art)
	old.Release()
	p.lastArtURL = url
	logMsg(fmt.Sprintf("[ART] Published %dx%d art", art.width, art.height))
}
