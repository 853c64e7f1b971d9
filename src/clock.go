package main

import "time"

// Clock is a free-running millisecond counter. It wraps at 2^32 like millis().
type Clock interface {
	NowMs() uint32
}

type monoClock struct {
	start time.Time
}

func newMonoClock() *monoClock {
	return &monoClock{start: time.Now()}
}

func (c *monoClock) NowMs() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Devices boot with the RTC at the epoch until NTP syncs.
const CLOCK_SYNCED_YEAR = 2020

// formatClock returns "03:04 PM" and "02/01/2006" in a fixed UTC offset.
func formatClock(t time.Time, offsetSeconds int) (string, string) {
	if t.Year() < CLOCK_SYNCED_YEAR {
		return "-- : --", "--/--/----"
	}
	local := t.In(time.FixedZone("device", offsetSeconds))
	return local.Format("03:04 PM"), local.Format("02/01/2006")
}
