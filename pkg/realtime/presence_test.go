// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"testing"

	"github.com/goccy/go-json"
)

func deliverState(ch *fakeChannel, state map[string]presenceEntry) {
	raw, _ := json.Marshal(state)
	ch.deliver("presence_state", raw)
}

func deliverDiff(ch *fakeChannel, diff presenceDiff) {
	raw, _ := json.Marshal(diff)
	ch.deliver("presence_diff", raw)
}

func meta(name, ref string) PresenceMeta {
	return PresenceMeta{DisplayName: name, Color: "#f80", CursorVisible: true, Ref: ref}
}

func TestPresenceStateFlattensFirstMetaWins(t *testing.T) {
	p := NewPresence()
	ch := newFakeChannel("room:doc-1")
	p.Attach(ch)

	var synced [][]PresenceUser
	p.OnSync(func(users []PresenceUser) { synced = append(synced, users) })

	deliverState(ch, map[string]presenceEntry{
		"alice": {Metas: []PresenceMeta{meta("Ada Desktop", "r1"), meta("Ada Phone", "r2")}},
		"bob":   {Metas: []PresenceMeta{meta("Grace", "r3")}},
	})

	if len(synced) != 1 {
		t.Fatalf("sync fired %d times, want 1", len(synced))
	}
	users := synced[0]
	if len(users) != 2 {
		t.Fatalf("users = %+v, want 2 rows", users)
	}
	// Multi-device presence collapses to the first meta.
	if users[0].ID != "alice" || users[0].Meta.DisplayName != "Ada Desktop" {
		t.Fatalf("first row = %+v", users[0])
	}
	if users[1].ID != "bob" || users[1].Meta.DisplayName != "Grace" {
		t.Fatalf("second row = %+v", users[1])
	}
}

func TestPresenceDiffJoinAndLeave(t *testing.T) {
	p := NewPresence()
	ch := newFakeChannel("room:doc-1")
	p.Attach(ch)

	var joins, leaves []PresenceUser
	p.OnJoin(func(u PresenceUser) { joins = append(joins, u) })
	p.OnLeave(func(u PresenceUser) { leaves = append(leaves, u) })

	deliverDiff(ch, presenceDiff{
		Joins: map[string]presenceEntry{"alice": {Metas: []PresenceMeta{meta("Ada", "r1")}}},
	})
	if len(joins) != 1 || joins[0].ID != "alice" {
		t.Fatalf("joins = %+v", joins)
	}

	deliverDiff(ch, presenceDiff{
		Leaves: map[string]presenceEntry{"alice": {Metas: []PresenceMeta{meta("Ada", "r1")}}},
	})
	if len(leaves) != 1 || leaves[0].ID != "alice" {
		t.Fatalf("leaves = %+v", leaves)
	}
	if got := p.Users(); len(got) != 0 {
		t.Fatalf("users after leave = %+v, want empty", got)
	}
}

func TestPresenceMultiDeviceNoSpuriousEvents(t *testing.T) {
	p := NewPresence()
	ch := newFakeChannel("room:doc-1")
	p.Attach(ch)

	var joins, leaves int
	p.OnJoin(func(PresenceUser) { joins++ })
	p.OnLeave(func(PresenceUser) { leaves++ })

	deliverDiff(ch, presenceDiff{
		Joins: map[string]presenceEntry{"alice": {Metas: []PresenceMeta{meta("Ada Desktop", "r1")}}},
	})
	// Second device of the same user: no join event.
	deliverDiff(ch, presenceDiff{
		Joins: map[string]presenceEntry{"alice": {Metas: []PresenceMeta{meta("Ada Phone", "r2")}}},
	})
	if joins != 1 {
		t.Fatalf("joins = %d, want 1", joins)
	}

	// One device leaves; the user is still present, no leave event.
	deliverDiff(ch, presenceDiff{
		Leaves: map[string]presenceEntry{"alice": {Metas: []PresenceMeta{meta("Ada Desktop", "r1")}}},
	})
	if leaves != 0 {
		t.Fatalf("leaves = %d, want 0", leaves)
	}
	users := p.Users()
	if len(users) != 1 || users[0].Meta.Ref != "r2" {
		t.Fatalf("users = %+v, want the phone meta", users)
	}
}

func TestPresenceAttachResubscribesCleanly(t *testing.T) {
	p := NewPresence()
	first := newFakeChannel("room:doc-1")
	p.Attach(first)
	deliverState(first, map[string]presenceEntry{
		"alice": {Metas: []PresenceMeta{meta("Ada", "r1")}},
	})

	second := newFakeChannel("room:doc-2")
	p.Attach(second)

	if got := first.tapCount(); got != 0 {
		t.Fatalf("old channel still has %d taps", got)
	}
	if got := p.Users(); len(got) != 0 {
		t.Fatalf("state survived re-attach: %+v", got)
	}

	// Attaching the same channel twice is also clean.
	p.Attach(second)
	p.Attach(second)
	if got := second.tapCount(); got != 1 {
		t.Fatalf("taps on current channel = %d, want 1", got)
	}
}

func TestPresenceDetachClearsEverything(t *testing.T) {
	p := NewPresence()
	ch := newFakeChannel("room:doc-1")
	p.Attach(ch)

	var syncs int
	p.OnSync(func([]PresenceUser) { syncs++ })
	deliverState(ch, map[string]presenceEntry{
		"alice": {Metas: []PresenceMeta{meta("Ada", "r1")}},
	})
	if syncs != 1 {
		t.Fatalf("syncs = %d, want 1", syncs)
	}

	p.Detach()
	p.Detach() // safe to repeat

	if got := ch.tapCount(); got != 0 {
		t.Fatalf("taps after detach = %d", got)
	}
	if got := p.Users(); len(got) != 0 {
		t.Fatalf("users after detach = %+v", got)
	}
	// Listeners were removed along with the state.
	p.Attach(ch)
	deliverState(ch, map[string]presenceEntry{
		"bob": {Metas: []PresenceMeta{meta("Grace", "r2")}},
	})
	if syncs != 1 {
		t.Fatalf("detached listener fired again, syncs = %d", syncs)
	}
}
