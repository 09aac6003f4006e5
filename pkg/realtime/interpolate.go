// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Interpolation defaults.
const (
	DefaultSmoothingFactor = 0.15
	DefaultSnapThreshold   = 100.0
	DefaultIdleTimeout     = 5 * time.Second
	DefaultFrameInterval   = 16 * time.Millisecond

	// snapEpsilon ends the asymptotic approach once the remaining
	// distance is sub-pixel.
	snapEpsilon = 0.5
)

// RemoteCursor is the rendered state of one remote participant's
// pointer. X and Y are the smoothed on-screen position; the raw
// network target is internal.
type RemoteCursor struct {
	UserID      string
	DisplayName string
	Color       string
	ElementID   string
	X           float64
	Y           float64
	Visible     bool

	targetX    float64
	targetY    float64
	lastUpdate time.Time
}

// InterpolatorConfig tunes remote cursor smoothing. Zero values select
// the package defaults.
type InterpolatorConfig struct {
	// SmoothingFactor is the fraction of the remaining distance
	// covered per frame.
	SmoothingFactor float64

	// SnapThreshold is the distance in pixels beyond which a new
	// target is applied instantly instead of animated. Catches
	// teleports after a backgrounded tab catches up.
	SnapThreshold float64

	// IdleTimeout hides a cursor with no updates; twice the timeout
	// removes it entirely.
	IdleTimeout time.Duration

	// FrameInterval paces the animation loop.
	FrameInterval time.Duration

	Clock Clock

	// OnFrame receives the visible render set after every tick.
	OnFrame func([]RemoteCursor)
}

func (c *InterpolatorConfig) withDefaults() InterpolatorConfig {
	out := *c
	if out.SmoothingFactor <= 0 || out.SmoothingFactor > 1 {
		out.SmoothingFactor = DefaultSmoothingFactor
	}
	if out.SnapThreshold <= 0 {
		out.SnapThreshold = DefaultSnapThreshold
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.FrameInterval <= 0 {
		out.FrameInterval = DefaultFrameInterval
	}
	if out.Clock == nil {
		out.Clock = SystemClock()
	}
	return out
}

// CursorInterpolator smooths inbound remote cursor positions for
// rendering. Each tick moves every cursor a fixed fraction toward its
// target and snaps exactly once the remainder is sub-pixel. The
// animation loop starts lazily on the first update and terminates
// itself when no cursors remain.
type CursorInterpolator struct {
	cfg   InterpolatorConfig
	clock Clock

	mu      sync.Mutex
	cursors map[string]*RemoteCursor
	running bool
	timer   Timer
}

// NewCursorInterpolator builds an interpolator.
func NewCursorInterpolator(cfg InterpolatorConfig) *CursorInterpolator {
	full := cfg.withDefaults()
	return &CursorInterpolator{
		cfg:     full,
		clock:   full.Clock,
		cursors: make(map[string]*RemoteCursor),
	}
}

// Observe applies an inbound cursor update for a user, creating the
// cursor on first sight. Targets farther than the snap threshold from
// the rendered position apply immediately; everything else animates.
func (ci *CursorInterpolator) Observe(userID, displayName, color string, x, y float64, elementID string) {
	ci.mu.Lock()
	cur, ok := ci.cursors[userID]
	if !ok {
		cur = &RemoteCursor{UserID: userID, X: x, Y: y}
		ci.cursors[userID] = cur
	}
	cur.DisplayName = displayName
	cur.Color = color
	cur.ElementID = elementID
	cur.targetX = x
	cur.targetY = y
	cur.lastUpdate = ci.clock.Now()
	cur.Visible = true
	if dist(cur.X, cur.Y, x, y) > ci.cfg.SnapThreshold {
		cur.X = x
		cur.Y = y
	}
	ci.startLocked()
	ci.mu.Unlock()
}

// Remove drops a user's cursor, e.g. on a presence leave.
func (ci *CursorInterpolator) Remove(userID string) {
	ci.mu.Lock()
	delete(ci.cursors, userID)
	ci.mu.Unlock()
}

// Cursors returns a snapshot of the visible render set, ordered by
// user id.
func (ci *CursorInterpolator) Cursors() []RemoteCursor {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.snapshotLocked()
}

// Stop halts the animation loop and clears all cursors.
func (ci *CursorInterpolator) Stop() {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.timer != nil {
		ci.timer.Stop()
		ci.timer = nil
	}
	ci.running = false
	ci.cursors = make(map[string]*RemoteCursor)
}

func (ci *CursorInterpolator) startLocked() {
	if ci.running {
		return
	}
	ci.running = true
	ci.timer = ci.clock.AfterFunc(ci.cfg.FrameInterval, ci.tick)
}

func (ci *CursorInterpolator) tick() {
	ci.mu.Lock()
	now := ci.clock.Now()
	for id, cur := range ci.cursors {
		idle := now.Sub(cur.lastUpdate)
		switch {
		case idle > 2*ci.cfg.IdleTimeout:
			delete(ci.cursors, id)
			continue
		case idle > ci.cfg.IdleTimeout:
			cur.Visible = false
		}
		ci.stepCursor(cur)
	}

	var frame []RemoteCursor
	if ci.cfg.OnFrame != nil {
		frame = ci.snapshotLocked()
	}
	if len(ci.cursors) == 0 {
		// Nothing left to animate; restart lazily on the next update.
		ci.running = false
		ci.timer = nil
	} else {
		ci.timer = ci.clock.AfterFunc(ci.cfg.FrameInterval, ci.tick)
	}
	onFrame := ci.cfg.OnFrame
	ci.mu.Unlock()

	if onFrame != nil {
		onFrame(frame)
	}
}

// stepCursor advances one cursor a smoothing fraction toward its
// target, snapping exactly when the remainder is sub-pixel to avoid
// asymptotic creep.
func (ci *CursorInterpolator) stepCursor(cur *RemoteCursor) {
	if dist(cur.X, cur.Y, cur.targetX, cur.targetY) < snapEpsilon {
		cur.X = cur.targetX
		cur.Y = cur.targetY
		return
	}
	cur.X += (cur.targetX - cur.X) * ci.cfg.SmoothingFactor
	cur.Y += (cur.targetY - cur.Y) * ci.cfg.SmoothingFactor
}

func (ci *CursorInterpolator) snapshotLocked() []RemoteCursor {
	out := make([]RemoteCursor, 0, len(ci.cursors))
	for _, cur := range ci.cursors {
		out = append(out, *cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
