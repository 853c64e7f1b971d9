package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// Input is the button and rotary collaborator. Every query is edge-triggered:
// it reports an event once and then clears it.
type Input interface {
	JustPressed(b Button) bool
	RotaryClockwise() bool
	RotaryCounterClockwise() bool
	RotaryHeld() bool

	// Run reads events until ctx is done or the source fails.
	Run(ctx context.Context) error
	Close() error
}

// errQuit is returned by an input that was asked to quit by the user.
var errQuit = errors.New("quit requested")

const ROTARY_HOLD = 600 * time.Millisecond

type inputEdge int

const (
	edgePrev inputEdge = iota
	edgePlay
	edgePause
	edgeNext
	edgeClockwise
	edgeCounterClockwise
	edgeHeld

	edgeCount
)

// edgeLatch holds events set by a reader goroutine until the frame loop takes them.
type edgeLatch struct {
	flags [edgeCount]atomic.Bool
}

func (l *edgeLatch) set(e inputEdge) {
	l.flags[e].Store(true)
}

func (l *edgeLatch) take(e inputEdge) bool {
	return l.flags[e].Swap(false)
}

func (l *edgeLatch) JustPressed(b Button) bool {
	switch b {
	case ButtonPrev:
		return l.take(edgePrev)
	case ButtonPlay:
		return l.take(edgePlay)
	case ButtonPause:
		return l.take(edgePause)
	case ButtonNext:
		return l.take(edgeNext)
	}
	return false
}

func (l *edgeLatch) RotaryClockwise() bool        { return l.take(edgeClockwise) }
func (l *edgeLatch) RotaryCounterClockwise() bool { return l.take(edgeCounterClockwise) }
func (l *edgeLatch) RotaryHeld() bool             { return l.take(edgeHeld) }

// openInput picks a backend: "none", "terminal", or an evdev device path.
func openInput(device string) (Input, error) {
	switch device {
	case "", "none":
		return &nullInput{}, nil
	case "terminal":
		return newTerminalInput(os.Stdin)
	}
	return openEvdevInput(device)
}

// Linux input event structure. The timeval width follows the platform word size.
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

type inputEvent32 struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

type inputEvent64 struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

func readInputEvent(r io.Reader) (inputEvent, error) {
	if strconv.IntSize == 64 {
		var ev inputEvent64
		err := binary.Read(r, binary.LittleEndian, &ev)
		return inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}, err
	}
	var ev inputEvent32
	err := binary.Read(r, binary.LittleEndian, &ev)
	return inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value}, err
}

// evdevInput reads key and rotary events straight from /dev/input/eventN.
// Debouncing and quadrature decoding are left to the kernel driver.
type evdevInput struct {
	edgeLatch
	path string
	r    io.ReadCloser

	holdStart time.Time
	holdFired bool
	now       func() time.Time
}

func openEvdevInput(path string) (*evdevInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return newEvdevInput(path, f), nil
}

func newEvdevInput(path string, r io.ReadCloser) *evdevInput {
	return &evdevInput{path: path, r: r, now: time.Now}
}

func (in *evdevInput) Run(ctx context.Context) error {
	logMsg(fmt.Sprintf("Input monitor started on %s", in.path))

	events := make(chan inputEvent)
	errs := make(chan error, 1)
	go func() {
		for {
			ev, err := readInputEvent(in.r)
			if err != nil {
				errs <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input %s: %w", in.path, err)
		case ev := <-events:
			in.handle(ev)
		}
	}
}

func (in *evdevInput) handle(ev inputEvent) {
	switch ev.Type {
	case EV_REL:
		if ev.Code != REL_DIAL || ev.Value == 0 {
			return
		}
		if ev.Value > 0 {
			in.set(edgeClockwise)
		} else {
			in.set(edgeCounterClockwise)
		}

	case EV_KEY:
		if ev.Code == KEY_MUTE {
			in.handleRotaryButton(ev.Value)
			return
		}
		if ev.Value != KEY_PRESSED {
			return
		}
		if b, ok := evdevButtons[ev.Code]; ok {
			in.set(edgeForButton(b))
		}
	}
}

// handleRotaryButton fires the held edge once per press, after ROTARY_HOLD.
func (in *evdevInput) handleRotaryButton(value int32) {
	switch value {
	case KEY_PRESSED:
		in.holdStart = in.now()
		in.holdFired = false
	case KEY_REPEAT, KEY_RELEASED:
		if !in.holdStart.IsZero() && !in.holdFired && in.now().Sub(in.holdStart) >= ROTARY_HOLD {
			in.holdFired = true
			in.set(edgeHeld)
		}
		if value == KEY_RELEASED {
			in.holdStart = time.Time{}
		}
	}
}

func (in *evdevInput) Close() error {
	return in.r.Close()
}

func edgeForButton(b Button) inputEdge {
	switch b {
	case ButtonPrev:
		return edgePrev
	case ButtonPlay:
		return edgePlay
	case ButtonPause:
		return edgePause
	}
	return edgeNext
}

// terminalInput maps single keystrokes on a raw-mode terminal.
type terminalInput struct {
	edgeLatch
	in       *os.File
	oldState *term.State
}

func newTerminalInput(in *os.File) (*terminalInput, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("input %s is not a terminal", in.Name())
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	return &terminalInput{in: in, oldState: oldState}, nil
}

func (t *terminalInput) Run(ctx context.Context) error {
	keys := make(chan byte)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := t.in.Read(buf)
			if err != nil {
				errs <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return fmt.Errorf("read terminal: %w", err)
		case k := <-keys:
			if k == TERM_KEY_QUIT || k == TERM_KEY_CTRL_C {
				return errQuit
			}
			if e, ok := terminalEdges[k]; ok {
				t.set(e)
			}
		}
	}
}

func (t *terminalInput) Close() error {
	return term.Restore(int(t.in.Fd()), t.oldState)
}

type nullInput struct {
	edgeLatch
}

func (n *nullInput) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (n *nullInput) Close() error { return nil }
