package main

import (
	"fmt"
	"time"
)

// GuardPolicy is how long one side of a shared region may wait for it.
type GuardPolicy struct {
	Name string
	Wait time.Duration
}

// contended describes an acquire that gave up under p.
func (p GuardPolicy) contended() error {
	return fmt.Errorf("%w: %s gave up after %v", ErrGuardContention, p.Name, p.Wait)
}

// PublishPolicy is the producer side: short bounded wait, drop on failure.
func PublishPolicy(wait time.Duration) GuardPolicy {
	return GuardPolicy{Name: "publish", Wait: wait}
}

// DrainPolicy is the render side and must never stall a frame.
func DrainPolicy(wait time.Duration) GuardPolicy {
	return GuardPolicy{Name: "drain", Wait: wait}
}

// guard is a one-slot semaphore with bounded-wait acquisition.
type guard struct {
	slot chan struct{}
}

func newGuard() *guard {
	return &guard{slot: make(chan struct{}, 1)}
}

func (g *guard) acquire(p GuardPolicy) bool {
	if p.Wait <= 0 {
		select {
		case g.slot <- struct{}{}:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(p.Wait)
	defer timer.Stop()
	select {
	case g.slot <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// lock blocks until the slot is free.
func (g *guard) lock() {
	g.slot <- struct{}{}
}

func (g *guard) release() {
	<-g.slot
}
