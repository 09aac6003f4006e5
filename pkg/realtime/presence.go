// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"sort"
	"sync"

	"github.com/goccy/go-json"
)

// PresenceMeta mirrors the server's per-device presence metadata.
type PresenceMeta struct {
	DisplayName   string `json:"display_name"`
	Color         string `json:"color"`
	Status        string `json:"status,omitempty"`
	CursorVisible bool   `json:"cursor_visible"`
	OnlineAt      int64  `json:"online_at"`
	Ref           string `json:"ref"`
}

// PresenceUser is one row of the flat user list. Meta is the user's
// first tracked meta; multi-device presence intentionally collapses to
// one row.
type PresenceUser struct {
	ID   string
	Meta PresenceMeta
}

type presenceEntry struct {
	Metas []PresenceMeta `json:"metas"`
}

type presenceDiff struct {
	Joins  map[string]presenceEntry `json:"joins"`
	Leaves map[string]presenceEntry `json:"leaves"`
}

// Presence translates a room channel's presence_state and presence_diff
// frames into the presence:sync, presence:join, and presence:leave
// vocabulary. It keeps a local copy of the directory and hands
// consumers a flat first-meta-wins user list.
type Presence struct {
	mu     sync.Mutex
	state  map[string][]PresenceMeta
	untap  func()
	next   int
	syncs  map[int]func([]PresenceUser)
	joins  map[int]func(PresenceUser)
	leaves map[int]func(PresenceUser)
}

// NewPresence builds an unattached translator.
func NewPresence() *Presence {
	return &Presence{
		state:  make(map[string][]PresenceMeta),
		syncs:  make(map[int]func([]PresenceUser)),
		joins:  make(map[int]func(PresenceUser)),
		leaves: make(map[int]func(PresenceUser)),
	}
}

// OnSync registers a listener for the full user list, fired after every
// state snapshot or diff.
func (p *Presence) OnSync(fn func([]PresenceUser)) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.syncs[id] = fn
	return &Subscription{cancel: func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.syncs, id)
	}}
}

// OnJoin registers a listener for users entering the room.
func (p *Presence) OnJoin(fn func(PresenceUser)) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.joins[id] = fn
	return &Subscription{cancel: func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.joins, id)
	}}
}

// OnLeave registers a listener for users leaving the room.
func (p *Presence) OnLeave(fn func(PresenceUser)) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.leaves[id] = fn
	return &Subscription{cancel: func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.leaves, id)
	}}
}

// Attach subscribes to a room channel's presence frames. Calling it
// again, on the same channel or another, cleanly resubscribes; the
// previous tap and local state are discarded first.
func (p *Presence) Attach(ch Channel) {
	p.mu.Lock()
	if p.untap != nil {
		p.untap()
		p.untap = nil
	}
	p.state = make(map[string][]PresenceMeta)
	p.mu.Unlock()

	untap := ch.OnMessage(p.handle)
	p.mu.Lock()
	p.untap = untap
	p.mu.Unlock()
}

// Detach drops the channel tap, local state, and every registered
// listener. Safe to call repeatedly.
func (p *Presence) Detach() {
	p.mu.Lock()
	untap := p.untap
	p.untap = nil
	p.state = make(map[string][]PresenceMeta)
	p.syncs = make(map[int]func([]PresenceUser))
	p.joins = make(map[int]func(PresenceUser))
	p.leaves = make(map[int]func(PresenceUser))
	p.mu.Unlock()
	if untap != nil {
		untap()
	}
}

// Users returns the flat first-meta-wins user list, ordered by id.
func (p *Presence) Users() []PresenceUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usersLocked()
}

func (p *Presence) handle(event string, payload json.RawMessage) {
	switch event {
	case "presence_state":
		p.handleState(payload)
	case "presence_diff":
		p.handleDiff(payload)
	}
}

func (p *Presence) handleState(payload json.RawMessage) {
	var snapshot map[string]presenceEntry
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return
	}

	p.mu.Lock()
	p.state = make(map[string][]PresenceMeta, len(snapshot))
	for id, entry := range snapshot {
		if len(entry.Metas) > 0 {
			p.state[id] = entry.Metas
		}
	}
	users := p.usersLocked()
	syncs := p.syncListenersLocked()
	p.mu.Unlock()

	for _, fn := range syncs {
		fn(users)
	}
}

func (p *Presence) handleDiff(payload json.RawMessage) {
	var diff presenceDiff
	if err := json.Unmarshal(payload, &diff); err != nil {
		return
	}

	p.mu.Lock()
	var joined, left []PresenceUser
	for id, entry := range diff.Joins {
		if len(entry.Metas) == 0 {
			continue
		}
		existing := p.state[id]
		if len(existing) == 0 {
			joined = append(joined, PresenceUser{ID: id, Meta: entry.Metas[0]})
		}
		p.state[id] = append(existing, entry.Metas...)
	}
	for id, entry := range diff.Leaves {
		remaining := removeMetas(p.state[id], entry.Metas)
		if len(remaining) == 0 {
			if len(p.state[id]) > 0 {
				left = append(left, PresenceUser{ID: id, Meta: p.state[id][0]})
			}
			delete(p.state, id)
		} else {
			p.state[id] = remaining
		}
	}
	users := p.usersLocked()
	syncs := p.syncListenersLocked()
	joinFns := make([]func(PresenceUser), 0, len(p.joins))
	for _, fn := range p.joins {
		joinFns = append(joinFns, fn)
	}
	leaveFns := make([]func(PresenceUser), 0, len(p.leaves))
	for _, fn := range p.leaves {
		leaveFns = append(leaveFns, fn)
	}
	p.mu.Unlock()

	sort.Slice(joined, func(i, j int) bool { return joined[i].ID < joined[j].ID })
	sort.Slice(left, func(i, j int) bool { return left[i].ID < left[j].ID })
	for _, u := range joined {
		for _, fn := range joinFns {
			fn(u)
		}
	}
	for _, u := range left {
		for _, fn := range leaveFns {
			fn(u)
		}
	}
	for _, fn := range syncs {
		fn(users)
	}
}

func (p *Presence) usersLocked() []PresenceUser {
	users := make([]PresenceUser, 0, len(p.state))
	for id, metas := range p.state {
		users = append(users, PresenceUser{ID: id, Meta: metas[0]})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (p *Presence) syncListenersLocked() []func([]PresenceUser) {
	fns := make([]func([]PresenceUser), 0, len(p.syncs))
	for _, fn := range p.syncs {
		fns = append(fns, fn)
	}
	return fns
}

// removeMetas drops metas whose ref matches a leave entry. Entries
// without refs fall back to removing everything, matching a full
// disconnect.
func removeMetas(have, gone []PresenceMeta) []PresenceMeta {
	if len(have) == 0 {
		return nil
	}
	refs := make(map[string]struct{}, len(gone))
	for _, m := range gone {
		if m.Ref == "" {
			return nil
		}
		refs[m.Ref] = struct{}{}
	}
	out := have[:0:0]
	for _, m := range have {
		if _, dropped := refs[m.Ref]; !dropped {
			out = append(out, m)
		}
	}
	return out
}
