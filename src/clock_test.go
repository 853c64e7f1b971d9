package main

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		name     string
		t        time.Time
		offset   int
		wantTime string
		wantDate string
	}{
		{"utc afternoon", time.Date(2024, 12, 31, 15, 4, 0, 0, time.UTC), 0, "03:04 PM", "31/12/2024"},
		{"offset crosses midnight", time.Date(2024, 12, 31, 20, 30, 0, 0, time.UTC), 28800, "04:30 AM", "01/01/2025"},
		{"unsynced rtc", time.Unix(5, 0), 0, "-- : --", "--/--/----"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTime, gotDate := formatClock(tt.t, tt.offset)
			if gotTime != tt.wantTime || gotDate != tt.wantDate {
				t.Errorf("formatClock() = %q, %q, want %q, %q", gotTime, gotDate, tt.wantTime, tt.wantDate)
			}
		})
	}
}

func TestMonoClockAdvances(t *testing.T) {
	c := newMonoClock()
	first := c.NowMs()
	time.Sleep(5 * time.Millisecond)
	if second := c.NowMs(); second-first < 5 {
		t.Errorf("clock advanced %d ms over a 5 ms sleep", second-first)
	}
}

func TestGuardAcquire(t *testing.T) {
	g := newGuard()
	if !g.acquire(DrainPolicy(0)) {
		t.Fatal("zero-wait acquire failed on a free guard")
	}
	if g.acquire(DrainPolicy(0)) {
		t.Fatal("guard acquired twice")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		g.release()
	}()
	if !g.acquire(PublishPolicy(time.Second)) {
		t.Fatal("bounded wait did not pick up the released guard")
	}
	g.release()
}

func TestGuardContendedError(t *testing.T) {
	err := PublishPolicy(10 * time.Millisecond).contended()
	if !errors.Is(err, ErrGuardContention) {
		t.Errorf("error = %v, want ErrGuardContention", err)
	}
	if !strings.Contains(err.Error(), "publish gave up after 10ms") {
		t.Errorf("error = %q, want the policy name and wait", err)
	}
}
