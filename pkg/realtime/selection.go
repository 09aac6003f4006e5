// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// DefaultSweepInterval paces the selection idle sweep. Selections carry
// no animation, so the loop runs far coarser than the cursor frame
// loop.
const DefaultSweepInterval = time.Second

// RemoteSelection is the rendered state of one remote participant's
// selection. The payload is opaque to the tracker; hosts decode it
// into whatever their editor model needs.
type RemoteSelection struct {
	UserID      string
	DisplayName string
	Color       string
	ElementID   string
	Selection   json.RawMessage
	Idle        bool

	lastUpdate time.Time
}

// SelectionTrackerConfig tunes remote selection tracking. Zero values
// select the package defaults.
type SelectionTrackerConfig struct {
	// IdleTimeout marks a selection with no updates as idle; twice the
	// timeout removes it entirely.
	IdleTimeout time.Duration

	// SweepInterval paces the idle sweep loop.
	SweepInterval time.Duration

	Clock Clock

	// OnChange receives the render set after every sweep that changed
	// it and after every observed update.
	OnChange func([]RemoteSelection)
}

func (c *SelectionTrackerConfig) withDefaults() SelectionTrackerConfig {
	out := *c
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = DefaultSweepInterval
	}
	if out.Clock == nil {
		out.Clock = SystemClock()
	}
	return out
}

// SelectionTracker keeps the latest selection per remote participant.
// Unlike cursors, selections apply instantly; the only time-driven
// behavior is the idle sweep, which starts lazily on the first update
// and terminates itself when no selections remain.
type SelectionTracker struct {
	cfg   SelectionTrackerConfig
	clock Clock

	mu         sync.Mutex
	selections map[string]*RemoteSelection
	running    bool
	timer      Timer
}

// NewSelectionTracker builds a tracker.
func NewSelectionTracker(cfg SelectionTrackerConfig) *SelectionTracker {
	full := cfg.withDefaults()
	return &SelectionTracker{
		cfg:        full,
		clock:      full.Clock,
		selections: make(map[string]*RemoteSelection),
	}
}

// Observe applies an inbound selection update for a user, creating the
// entry on first sight. The newest payload always wins.
func (st *SelectionTracker) Observe(userID, displayName, color, elementID string, selection json.RawMessage) {
	st.mu.Lock()
	sel, ok := st.selections[userID]
	if !ok {
		sel = &RemoteSelection{UserID: userID}
		st.selections[userID] = sel
	}
	sel.DisplayName = displayName
	sel.Color = color
	sel.ElementID = elementID
	sel.Selection = selection
	sel.lastUpdate = st.clock.Now()
	sel.Idle = false
	st.startLocked()
	var set []RemoteSelection
	if st.cfg.OnChange != nil {
		set = st.snapshotLocked()
	}
	onChange := st.cfg.OnChange
	st.mu.Unlock()

	if onChange != nil {
		onChange(set)
	}
}

// Remove drops a user's selection, e.g. on a presence leave.
func (st *SelectionTracker) Remove(userID string) {
	st.mu.Lock()
	delete(st.selections, userID)
	st.mu.Unlock()
}

// Selections returns a snapshot of the render set, ordered by user id.
func (st *SelectionTracker) Selections() []RemoteSelection {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

// Stop halts the sweep loop and clears all selections.
func (st *SelectionTracker) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.running = false
	st.selections = make(map[string]*RemoteSelection)
}

func (st *SelectionTracker) startLocked() {
	if st.running {
		return
	}
	st.running = true
	st.timer = st.clock.AfterFunc(st.cfg.SweepInterval, st.sweep)
}

func (st *SelectionTracker) sweep() {
	st.mu.Lock()
	now := st.clock.Now()
	changed := false
	for id, sel := range st.selections {
		idle := now.Sub(sel.lastUpdate)
		switch {
		case idle > 2*st.cfg.IdleTimeout:
			delete(st.selections, id)
			changed = true
		case idle > st.cfg.IdleTimeout:
			if !sel.Idle {
				sel.Idle = true
				changed = true
			}
		}
	}

	var set []RemoteSelection
	if changed && st.cfg.OnChange != nil {
		set = st.snapshotLocked()
	}
	if len(st.selections) == 0 {
		// Nothing left to watch; restart lazily on the next update.
		st.running = false
		st.timer = nil
	} else {
		st.timer = st.clock.AfterFunc(st.cfg.SweepInterval, st.sweep)
	}
	onChange := st.cfg.OnChange
	st.mu.Unlock()

	if changed && onChange != nil {
		onChange(set)
	}
}

func (st *SelectionTracker) snapshotLocked() []RemoteSelection {
	out := make([]RemoteSelection, 0, len(st.selections))
	for _, sel := range st.selections {
		out = append(out, *sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
