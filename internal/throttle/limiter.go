// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package throttle rate-limits inbound cursor updates per (room, user).
//
// The server-side half of the cursor pipeline: each (room, user) pair gets
// a token bucket with burst 1 refilling once per throttle interval. An
// update arriving inside the window is dropped, not queued — bandwidth
// protection takes priority over delivering every sample, and cursor data
// is last-write-wins so the next allowed update supersedes anything
// dropped before it.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type key struct {
	room string
	user string
}

// Limiter is a keyed rate limiter over (room, user) pairs.
// Safe for concurrent use.
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[key]*rate.Limiter
}

// NewLimiter creates a limiter allowing one update per interval per pair.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		limiters: make(map[key]*rate.Limiter),
	}
}

// Allow reports whether an update from user in room may be broadcast now.
// The first update for a pair is always allowed.
func (l *Limiter) Allow(room, user string) bool {
	return l.allowAt(time.Now(), room, user)
}

// allowAt is the clock-injectable core of Allow.
func (l *Limiter) allowAt(now time.Time, room, user string) bool {
	l.mu.Lock()
	k := key{room: room, user: user}
	lim, ok := l.limiters[k]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[k] = lim
	}
	l.mu.Unlock()

	return lim.AllowN(now, 1)
}

// Release drops the bookkeeping for a pair. Called on session terminate;
// without it, long-running processes accumulate dead entries.
func (l *Limiter) Release(room, user string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key{room: room, user: user})
}

// Len returns the number of tracked pairs.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
