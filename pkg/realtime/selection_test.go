// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testSelectionTracker(idle time.Duration) (*SelectionTracker, *fakeClock) {
	clk := newFakeClock()
	st := NewSelectionTracker(SelectionTrackerConfig{
		IdleTimeout:   idle,
		SweepInterval: idle / 2,
		Clock:         clk,
	})
	return st, clk
}

func selectionOf(t *testing.T, st *SelectionTracker, userID string) RemoteSelection {
	t.Helper()
	for _, sel := range st.Selections() {
		if sel.UserID == userID {
			return sel
		}
	}
	t.Fatalf("no selection for %s", userID)
	return RemoteSelection{}
}

func TestSelectionLatestPayloadWins(t *testing.T) {
	st, _ := testSelectionTracker(time.Hour)
	st.Observe("u1", "Ada", "#f80", "para-1", json.RawMessage(`{"from":0,"to":4}`))
	st.Observe("u1", "Ada", "#f80", "para-2", json.RawMessage(`{"from":8,"to":12}`))

	sel := selectionOf(t, st, "u1")
	if string(sel.Selection) != `{"from":8,"to":12}` || sel.ElementID != "para-2" {
		t.Fatalf("selection = %+v, want the newest payload", sel)
	}
	if sel.Idle {
		t.Fatal("fresh selection marked idle")
	}
}

func TestSelectionIdleThenRemoved(t *testing.T) {
	st, clk := testSelectionTracker(100 * time.Millisecond)
	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{}`))

	clk.Advance(150 * time.Millisecond)
	if sel := selectionOf(t, st, "u1"); !sel.Idle {
		t.Fatal("selection not idle past the idle timeout")
	}

	clk.Advance(150 * time.Millisecond)
	if got := len(st.Selections()); got != 0 {
		t.Fatalf("%d selections left past twice the idle timeout, want 0", got)
	}

	// The sweep self-terminated with the last selection.
	st.mu.Lock()
	running := st.running
	st.mu.Unlock()
	if running {
		t.Fatal("sweep loop still running with no selections")
	}

	// And restarts lazily on the next update.
	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{}`))
	st.mu.Lock()
	running = st.running
	st.mu.Unlock()
	if !running {
		t.Fatal("sweep loop did not restart on new update")
	}
	if sel := selectionOf(t, st, "u1"); sel.Idle {
		t.Fatal("revived selection still marked idle")
	}
}

func TestSelectionUpdateClearsIdle(t *testing.T) {
	st, clk := testSelectionTracker(100 * time.Millisecond)
	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{}`))

	clk.Advance(150 * time.Millisecond)
	if sel := selectionOf(t, st, "u1"); !sel.Idle {
		t.Fatal("selection not idle past the idle timeout")
	}

	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{"from":1}`))
	if sel := selectionOf(t, st, "u1"); sel.Idle {
		t.Fatal("updated selection still marked idle")
	}

	// A fresh update also restarts the removal window.
	clk.Advance(150 * time.Millisecond)
	if got := len(st.Selections()); got != 1 {
		t.Fatalf("%d selections, want the refreshed one kept", got)
	}
}

func TestSelectionRemoveDrops(t *testing.T) {
	st, _ := testSelectionTracker(time.Hour)
	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{}`))
	st.Observe("u2", "Grace", "#08f", "", json.RawMessage(`{}`))

	st.Remove("u1")

	sels := st.Selections()
	if len(sels) != 1 || sels[0].UserID != "u2" {
		t.Fatalf("selections = %+v, want only u2", sels)
	}
}

func TestSelectionOnChangeFiresOnUpdatesAndTransitions(t *testing.T) {
	clk := newFakeClock()
	var calls int
	st := NewSelectionTracker(SelectionTrackerConfig{
		IdleTimeout:   100 * time.Millisecond,
		SweepInterval: 50 * time.Millisecond,
		Clock:         clk,
		OnChange:      func([]RemoteSelection) { calls++ },
	})
	st.Observe("u1", "Ada", "#f80", "", json.RawMessage(`{}`))
	if calls != 1 {
		t.Fatalf("calls after observe = %d, want 1", calls)
	}

	// Sweeps that change nothing stay silent.
	clk.Advance(50 * time.Millisecond)
	if calls != 1 {
		t.Fatalf("calls after quiet sweep = %d, want 1", calls)
	}

	// One call for the idle transition, one for the removal.
	clk.Advance(100 * time.Millisecond)
	if calls != 2 {
		t.Fatalf("calls after idle transition = %d, want 2", calls)
	}
	clk.Advance(150 * time.Millisecond)
	if calls != 3 {
		t.Fatalf("calls after removal = %d, want 3", calls)
	}
}
