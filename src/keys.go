package main

// Button is one of the four transport buttons.
type Button int

const (
	ButtonPrev Button = iota
	ButtonPlay
	ButtonPause
	ButtonNext
)

func (b Button) String() string {
	switch b {
	case ButtonPrev:
		return "prev"
	case ButtonPlay:
		return "play"
	case ButtonPause:
		return "pause"
	case ButtonNext:
		return "next"
	}
	return "unknown"
}

// Linux input event types and codes (linux/input-event-codes.h)
const (
	EV_KEY = 0x01
	EV_REL = 0x02

	REL_DIAL = 0x07

	KEY_MUTE         = 113
	KEY_NEXTSONG     = 163
	KEY_PLAYPAUSE    = 164
	KEY_PREVIOUSSONG = 165
	KEY_PLAYCD       = 200
	KEY_PAUSECD      = 201
)

// Key event values
const (
	KEY_RELEASED = 0
	KEY_PRESSED  = 1
	KEY_REPEAT   = 2
)

// evdevButtons maps key codes to transport buttons
var evdevButtons = map[uint16]Button{
	KEY_PREVIOUSSONG: ButtonPrev,
	KEY_PLAYCD:       ButtonPlay,
	KEY_PLAYPAUSE:    ButtonPlay,
	KEY_PAUSECD:      ButtonPause,
	KEY_NEXTSONG:     ButtonNext,
}

// Terminal keys, for running on a desktop
const (
	TERM_KEY_QUIT   = 'q'
	TERM_KEY_CTRL_C = 0x03
)

var terminalEdges = map[byte]inputEdge{
	'z': edgePrev,
	'x': edgePlay,
	'c': edgePause,
	'v': edgeNext,
	'+': edgeClockwise,
	'=': edgeClockwise,
	'-': edgeCounterClockwise,
	'm': edgeHeld,
}
