// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package presence tracks which users are in each room and their metadata.
//
// The directory is a single-goroutine actor: all state lives behind a
// command channel, so no locks guard the maps and every mutation is
// serialized. Room sessions talk to it through Track/Update/Untrack;
// the hub subscribes per room to receive join/leave diffs for broadcast.
//
// A user may be present from several devices at once (one meta per
// device ref). Snapshot consumers that need a flat user list take the
// first meta per user — multi-device presence intentionally collapses to
// one row.
package presence

import (
	"context"
	"sync/atomic"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/protocol"
)

// Directory is the presence actor. Create with NewDirectory and run
// Serve on a supervisor; the command API blocks until the actor runs.
type Directory struct {
	cmds   chan command
	subSeq atomic.Uint64
}

type command interface{ isCommand() }

type trackCmd struct {
	room, user string
	meta       protocol.PresenceMeta
}

type updateCmd struct {
	room, user, ref string
	merge           func(*protocol.PresenceMeta)
}

type untrackCmd struct {
	room, user, ref string
}

type listCmd struct {
	room  string
	reply chan protocol.PresenceStatePayload
}

type subscribeCmd struct {
	room  string
	id    uint64
	fn    func(protocol.PresenceDiffPayload)
	reply chan struct{}
}

type unsubscribeCmd struct {
	room string
	id   uint64
}

func (trackCmd) isCommand()       {}
func (updateCmd) isCommand()      {}
func (untrackCmd) isCommand()     {}
func (listCmd) isCommand()        {}
func (subscribeCmd) isCommand()   {}
func (unsubscribeCmd) isCommand() {}

// roomPresence is the per-room state owned by the actor goroutine.
type roomPresence struct {
	// users maps user id to that user's device metas, in track order.
	users map[string][]protocol.PresenceMeta
	subs  map[uint64]func(protocol.PresenceDiffPayload)
}

// NewDirectory creates a directory actor. The command channel is buffered
// so short bursts from sessions do not block on the actor's scheduling.
func NewDirectory() *Directory {
	return &Directory{
		cmds: make(chan command, 128),
	}
}

// Serve runs the actor loop until ctx is canceled. Designed for suture
// supervision; a restart starts from an empty directory and sessions
// re-track on their next heartbeat-driven rejoin.
func (d *Directory) Serve(ctx context.Context) error {
	rooms := make(map[string]*roomPresence)

	logging.Info().Str("component", "presence-directory").Msg("presence directory started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "presence-directory").
				Int("rooms", len(rooms)).
				Msg("presence directory stopped")
			return ctx.Err()

		case cmd := <-d.cmds:
			d.handle(rooms, cmd)
		}
	}
}

func (d *Directory) handle(rooms map[string]*roomPresence, cmd command) {
	switch c := cmd.(type) {
	case trackCmd:
		rp := getRoom(rooms, c.room)
		_, existed := rp.users[c.user]
		rp.users[c.user] = append(rp.users[c.user], c.meta)
		if !existed {
			rp.notify(protocol.PresenceDiffPayload{
				Joins:  map[string]protocol.PresenceEntry{c.user: {Metas: rp.users[c.user]}},
				Leaves: map[string]protocol.PresenceEntry{},
			})
		}

	case updateCmd:
		rp, ok := rooms[c.room]
		if !ok {
			return
		}
		metas, ok := rp.users[c.user]
		if !ok {
			return
		}
		for i := range metas {
			if metas[i].Ref == c.ref {
				c.merge(&metas[i])
			}
		}
		// Metadata changes ride the join side of a diff, matching the
		// snapshot a late joiner would observe.
		rp.notify(protocol.PresenceDiffPayload{
			Joins:  map[string]protocol.PresenceEntry{c.user: {Metas: metas}},
			Leaves: map[string]protocol.PresenceEntry{},
		})

	case untrackCmd:
		rp, ok := rooms[c.room]
		if !ok {
			return
		}
		metas := rp.users[c.user]
		kept := metas[:0]
		var removed []protocol.PresenceMeta
		for _, m := range metas {
			if m.Ref == c.ref {
				removed = append(removed, m)
			} else {
				kept = append(kept, m)
			}
		}
		if len(removed) == 0 {
			return
		}
		if len(kept) == 0 {
			delete(rp.users, c.user)
			rp.notify(protocol.PresenceDiffPayload{
				Joins:  map[string]protocol.PresenceEntry{},
				Leaves: map[string]protocol.PresenceEntry{c.user: {Metas: removed}},
			})
		} else {
			rp.users[c.user] = kept
		}
		if len(rp.users) == 0 && len(rp.subs) == 0 {
			delete(rooms, c.room)
		}

	case listCmd:
		snapshot := make(protocol.PresenceStatePayload)
		if rp, ok := rooms[c.room]; ok {
			for user, metas := range rp.users {
				entry := protocol.PresenceEntry{Metas: make([]protocol.PresenceMeta, len(metas))}
				copy(entry.Metas, metas)
				snapshot[user] = entry
			}
		}
		c.reply <- snapshot

	case subscribeCmd:
		rp := getRoom(rooms, c.room)
		rp.subs[c.id] = c.fn
		c.reply <- struct{}{}

	case unsubscribeCmd:
		rp, ok := rooms[c.room]
		if !ok {
			return
		}
		delete(rp.subs, c.id)
		if len(rp.users) == 0 && len(rp.subs) == 0 {
			delete(rooms, c.room)
		}
	}
}

func getRoom(rooms map[string]*roomPresence, room string) *roomPresence {
	rp, ok := rooms[room]
	if !ok {
		rp = &roomPresence{
			users: make(map[string][]protocol.PresenceMeta),
			subs:  make(map[uint64]func(protocol.PresenceDiffPayload)),
		}
		rooms[room] = rp
	}
	return rp
}

// notify delivers a diff to every room subscriber. Called from the actor
// goroutine; subscribers must only enqueue, never block.
func (rp *roomPresence) notify(diff protocol.PresenceDiffPayload) {
	for _, fn := range rp.subs {
		fn(diff)
	}
}

// Track registers one device's presence for a user in a room.
// The meta's Ref distinguishes the device.
func (d *Directory) Track(room, user string, meta protocol.PresenceMeta) {
	d.cmds <- trackCmd{room: room, user: user, meta: meta}
}

// Update applies merge to the user's meta with the given device ref.
func (d *Directory) Update(room, user, ref string, merge func(*protocol.PresenceMeta)) {
	d.cmds <- updateCmd{room: room, user: user, ref: ref, merge: merge}
}

// Untrack removes one device's presence. The user leaves the room once
// their last device untracks.
func (d *Directory) Untrack(room, user, ref string) {
	d.cmds <- untrackCmd{room: room, user: user, ref: ref}
}

// List returns a snapshot of the room's presence state.
func (d *Directory) List(room string) protocol.PresenceStatePayload {
	reply := make(chan protocol.PresenceStatePayload, 1)
	d.cmds <- listCmd{room: room, reply: reply}
	return <-reply
}

// Subscribe registers fn for the room's presence diffs and returns an
// unsubscribe function that removes exactly this registration.
func (d *Directory) Subscribe(room string, fn func(protocol.PresenceDiffPayload)) func() {
	id := d.subSeq.Add(1)
	reply := make(chan struct{}, 1)
	d.cmds <- subscribeCmd{room: room, id: id, fn: fn, reply: reply}
	<-reply
	return func() {
		d.cmds <- unsubscribeCmd{room: room, id: id}
	}
}
