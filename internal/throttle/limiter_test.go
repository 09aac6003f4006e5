// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package throttle

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := NewLimiter(16 * time.Millisecond)
	base := time.Now()

	if !l.allowAt(base, "r1", "u1") {
		t.Fatal("first update must be allowed")
	}
	// Second update 10ms later is inside the window: dropped.
	if l.allowAt(base.Add(10*time.Millisecond), "r1", "u1") {
		t.Fatal("update inside throttle window must be dropped")
	}
	// Third update 20ms after the first clears the window.
	if !l.allowAt(base.Add(20*time.Millisecond), "r1", "u1") {
		t.Fatal("update past the window must be allowed")
	}
}

func TestPairsAreIndependent(t *testing.T) {
	l := NewLimiter(16 * time.Millisecond)
	base := time.Now()

	if !l.allowAt(base, "r1", "u1") {
		t.Fatal("first u1 update must be allowed")
	}
	// Same instant, different user: independent bucket.
	if !l.allowAt(base, "r1", "u2") {
		t.Fatal("different user must have an independent window")
	}
	// Same user, different room: independent bucket.
	if !l.allowAt(base, "r2", "u1") {
		t.Fatal("different room must have an independent window")
	}
}

func TestRelease(t *testing.T) {
	l := NewLimiter(time.Hour)
	base := time.Now()

	l.allowAt(base, "r1", "u1")
	l.allowAt(base, "r1", "u2")
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}

	l.Release("r1", "u1")
	if l.Len() != 1 {
		t.Fatalf("Len after release = %d, want 1", l.Len())
	}

	// Released pair starts fresh: allowed immediately despite 1h interval.
	if !l.allowAt(base, "r1", "u1") {
		t.Fatal("released pair must start with a fresh window")
	}
}

func TestReleaseUnknownPair(t *testing.T) {
	l := NewLimiter(time.Millisecond)
	l.Release("r1", "ghost") // must not panic
}
