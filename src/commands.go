package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

type CommandKind int

const (
	CmdPlay CommandKind = iota
	CmdPause
	CmdNext
	CmdPrev
	CmdVolumeUp
	CmdVolumeDown
	CmdToggleMute

	commandKindCount
)

func (k CommandKind) String() string {
	switch k {
	case CmdPlay:
		return "play"
	case CmdPause:
		return "pause"
	case CmdNext:
		return "next"
	case CmdPrev:
		return "prev"
	case CmdVolumeUp:
		return "volume_up"
	case CmdVolumeDown:
		return "volume_down"
	case CmdToggleMute:
		return "toggle_mute"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// CommandSet is a drained snapshot of the pending flags, indexed by kind.
type CommandSet [commandKindCount]bool

func (s CommandSet) Any() bool {
	return lo.Contains(s[:], true)
}

func (s CommandSet) Kinds() []CommandKind {
	var kinds []CommandKind
	for i, set := range s {
		if set {
			kinds = append(kinds, CommandKind(i))
		}
	}
	return kinds
}

// CommandQueue coalesces user actions between poll cycles: requesting the
// same action twice before a drain runs it once.
type CommandQueue struct {
	g       *guard
	request GuardPolicy
	peek    GuardPolicy
	flags   CommandSet
}

func NewCommandQueue(request, peek GuardPolicy) *CommandQueue {
	return &CommandQueue{
		g:       newGuard(),
		request: request,
		peek:    peek,
	}
}

// Request sets the flag for kind. It returns false if the guard was busy and
// the request was dropped.
func (q *CommandQueue) Request(kind CommandKind) bool {
	if kind < 0 || kind >= commandKindCount {
		return false
	}
	if !q.g.acquire(q.request) {
		return false
	}
	q.flags[kind] = true
	q.g.release()
	return true
}

// Pending reports whether any flag is set. Contention reads as false.
func (q *CommandQueue) Pending() bool {
	if !q.g.acquire(q.peek) {
		return false
	}
	defer q.g.release()
	return q.flags.Any()
}

// Drain snapshots and clears every flag.
func (q *CommandQueue) Drain() CommandSet {
	q.g.lock()
	defer q.g.release()

	set := q.flags
	q.flags = CommandSet{}
	return set
}

type CommandConfig struct {
	VolumeStep   int
	UnmuteVolume int
}

// executeCommands runs the drained actions in a fixed order with no guard held.
// A failed action does not stop the ones after it.
func executeCommands(ctx context.Context, set CommandSet, svc PlaybackService, cfg CommandConfig) []error {
	var errs []error
	for _, kind := range set.Kinds() {
		logMsg(fmt.Sprintf("[CMD] Executing %s", kind))
		if err := executeCommand(ctx, kind, svc, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errs
}

func executeCommand(ctx context.Context, kind CommandKind, svc PlaybackService, cfg CommandConfig) error {
	switch kind {
	case CmdPlay:
		return svc.Play(ctx)
	case CmdPause:
		return svc.Pause(ctx)
	case CmdNext:
		return svc.SkipNext(ctx)
	case CmdPrev:
		return svc.SkipPrevious(ctx)
	case CmdVolumeUp:
		return adjustVolume(ctx, svc, cfg.VolumeStep)
	case CmdVolumeDown:
		return adjustVolume(ctx, svc, -cfg.VolumeStep)
	case CmdToggleMute:
		return toggleMute(ctx, svc, cfg.UnmuteVolume)
	}
	return fmt.Errorf("unknown command %d", int(kind))
}

// adjustVolume reads the device volume and moves it by delta within 0..100.
// Nothing is sent when the volume is already at the limit.
func adjustVolume(ctx context.Context, svc PlaybackService, delta int) error {
	current, err := svc.CurrentVolume(ctx)
	if err != nil {
		return err
	}
	if current < 0 {
		return ErrVolumeRead
	}
	if (delta > 0 && current >= 100) || (delta < 0 && current <= 0) {
		return nil
	}

	newVolume := lo.Clamp(current+delta, 0, 100)
	if err := svc.SetVolume(ctx, newVolume); err != nil {
		return err
	}

	logMsg(fmt.Sprintf("Volume: %d%%", newVolume))
	return nil
}

// toggleMute sends 0 when audible and a fixed level when muted.
func toggleMute(ctx context.Context, svc PlaybackService, unmuteVolume int) error {
	current, err := svc.CurrentVolume(ctx)
	if err != nil {
		return err
	}
	if current < 0 {
		return ErrVolumeRead
	}

	newVolume := 0
	if current == 0 {
		newVolume = unmuteVolume
	}
	if err := svc.SetVolume(ctx, newVolume); err != nil {
		return err
	}

	logMsg(fmt.Sprintf("Volume: %d%%", newVolume))
	return nil
}
