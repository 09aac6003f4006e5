// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import "time"

// Clock abstracts wall-clock reads and deferred execution so the
// backoff, heartbeat, throttle, and animation timers can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable deferred call.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired.
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns the real-time clock used by default.
func SystemClock() Clock { return systemClock{} }
