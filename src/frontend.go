package main

import (
	"context"
	"fmt"
	"time"
)

// Frontend is the consumer context. It never blocks on the network and only
// takes the state guard for the length of a drain.
type Frontend struct {
	ch    *StateChannel
	queue *CommandQueue
	panel Panel
	input Input
	clock Clock
	wall  func() time.Time

	frameInterval time.Duration
	utcOffset     int

	sample   *PlaybackSample
	lastTick uint32
	changed  bool
}

func NewFrontend(cfg *Config, ch *StateChannel, queue *CommandQueue, panel Panel, input Input, clock Clock) *Frontend {
	return &Frontend{
		ch:            ch,
		queue:         queue,
		panel:         panel,
		input:         input,
		clock:         clock,
		wall:          time.Now,
		frameInterval: cfg.FrameInterval(),
		utcOffset:     cfg.UTCOffsetSeconds,
	}
}

// Run calls Frame every frame interval and Tick once a second of monotonic time.
func (f *Frontend) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.frameInterval)
	defer ticker.Stop()

	f.Tick()
	f.lastTick = f.clock.NowMs()
	f.flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		f.Frame()
		now := f.clock.NowMs()
		if now-f.lastTick >= TICK_INTERVAL_MS {
			f.lastTick = now
			f.Tick()
		}
		f.flush()
	}
}

func (f *Frontend) flush() {
	if f.changed {
		f.panel.Flush()
		f.changed = false
	}
}

// Frame turns input edges into commands and applies whatever the poller
// published since the last frame.
func (f *Frontend) Frame() {
	f.pollInput()

	p, ok := f.ch.Drain()
	if !ok {
		return
	}
	f.apply(p)
}

func (f *Frontend) apply(p Pending) {
	if p.Artist != nil {
		f.panel.SetArtist(*p.Artist)
		f.changed = true
	}
	if p.Title != nil {
		f.panel.SetTitle(*p.Title)
		f.changed = true
	}
	if p.Device != nil {
		f.panel.SetDevice(*p.Device)
		f.changed = true
	}
	if p.Sample != nil {
		f.sample = p.Sample
	}
	if p.Art != nil {
		f.panel.SetImage(*p.Art, ART_SCALE)
		f.changed = true
	}
}

// Tick refreshes the clock and re-derives progress from the cached sample.
func (f *Frontend) Tick() {
	timeStr, dateStr := formatClock(f.wall(), f.utcOffset)
	f.panel.SetClock(timeStr, dateStr)
	f.changed = true

	if f.sample == nil || f.sample.DurationMs == 0 {
		return
	}
	progress := EstimateProgress(f.sample, f.clock.NowMs())
	f.panel.SetCurrentTime(formatTime(progress))
	f.panel.SetEndTime(formatTime(f.sample.DurationMs))
	f.panel.SetProgress(progressPercent(progress, f.sample.DurationMs))
}

var buttonCommands = []struct {
	button Button
	kind   CommandKind
}{
	{ButtonPrev, CmdPrev},
	{ButtonPlay, CmdPlay},
	{ButtonPause, CmdPause},
	{ButtonNext, CmdNext},
}

func (f *Frontend) pollInput() {
	if f.input == nil {
		return
	}
	for _, bc := range buttonCommands {
		if f.input.JustPressed(bc.button) {
			f.request(bc.kind, fmt.Sprintf("%s button", bc.button))
		}
	}
	if f.input.RotaryClockwise() {
		f.request(CmdVolumeUp, "rotary clockwise")
	}
	if f.input.RotaryCounterClockwise() {
		f.request(CmdVolumeDown, "rotary counter-clockwise")
	}
	if f.input.RotaryHeld() {
		f.request(CmdToggleMute, "rotary held")
	}
}

func (f *Frontend) request(kind CommandKind, source string) {
	if f.queue.Request(kind) {
		logMsg(fmt.Sprintf("[INPUT] %s -> %s", source, kind))
	} else {
		logMsg(fmt.Sprintf("DEBUG: [INPUT] %s dropped: %v", source, f.queue.request.contended()))
	}
}
