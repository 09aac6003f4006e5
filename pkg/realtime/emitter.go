// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"sort"
	"sync"
)

// Subscription is an owned registration token. Unsubscribe removes
// exactly the registration that produced it and is safe to call more
// than once.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the registration.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// emitter is a listener registry keyed by event name. Each On call
// returns its own handle; listeners are invoked synchronously in
// registration order.
type emitter struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func(Event)
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[string]map[int]func(Event))}
}

func (e *emitter) on(event string, fn func(Event)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	if e.subs[event] == nil {
		e.subs[event] = make(map[int]func(Event))
	}
	e.subs[event][id] = fn
	return &Subscription{cancel: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs[event], id)
	}}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.subs[ev.Type]))
	ids := make([]int, 0, len(e.subs[ev.Type]))
	for id := range e.subs[ev.Type] {
		ids = append(ids, id)
	}
	// Map iteration order is random; deliver in registration order.
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, e.subs[ev.Type][id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
