// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"sync"
	"time"
)

// DefaultThrottleInterval matches one frame at 60fps.
const DefaultThrottleInterval = 16 * time.Millisecond

// CursorPayload is an outbound cursor position.
type CursorPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ElementID string  `json:"element_id,omitempty"`
}

// CursorThrottle rate-shapes outbound cursor updates with trailing-edge
// coalescing. A call made after the interval has elapsed sends
// immediately; calls inside the window stash the payload and arm a
// single timer for the remainder, so only the latest position is ever
// sent. Updates are coalesced, never queued.
type CursorThrottle struct {
	interval time.Duration
	clock    Clock
	send     func(CursorPayload)

	mu       sync.Mutex
	lastSend time.Time
	pending  *CursorPayload
	timer    Timer
}

// NewCursorThrottle builds a throttle delivering through send.
// interval <= 0 selects DefaultThrottleInterval; a nil clock selects
// the system clock.
func NewCursorThrottle(interval time.Duration, clock Clock, send func(CursorPayload)) *CursorThrottle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &CursorThrottle{interval: interval, clock: clock, send: send}
}

// SendUpdate submits a position. It never blocks; delivery happens
// either inline or from the deferred timer.
func (t *CursorThrottle) SendUpdate(x, y float64, elementID string) {
	payload := CursorPayload{X: x, Y: y, ElementID: elementID}

	t.mu.Lock()
	now := t.clock.Now()
	if now.Sub(t.lastSend) >= t.interval {
		t.lastSend = now
		t.mu.Unlock()
		t.send(payload)
		return
	}

	t.pending = &payload
	if t.timer == nil {
		remaining := t.interval - now.Sub(t.lastSend)
		t.timer = t.clock.AfterFunc(remaining, t.flush)
	}
	t.mu.Unlock()
}

// flush delivers the latest coalesced payload.
func (t *CursorThrottle) flush() {
	t.mu.Lock()
	t.timer = nil
	payload := t.pending
	t.pending = nil
	if payload == nil {
		t.mu.Unlock()
		return
	}
	t.lastSend = t.clock.Now()
	t.mu.Unlock()
	t.send(*payload)
}

// Stop cancels any pending deferred send.
func (t *CursorThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}
