// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package wstransport

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/driftlabs/roomkit/internal/protocol"
)

// Channel is one topic-scoped stream over the shared socket.
type Channel struct {
	t     *Transport
	topic string

	mu   sync.Mutex
	next int
	taps map[int]func(string, json.RawMessage)
}

func newChannel(t *Transport, topic string) *Channel {
	return &Channel{t: t, topic: topic, taps: make(map[int]func(string, json.RawMessage))}
}

// Join implements realtime.Channel.
func (c *Channel) Join(params any) (json.RawMessage, error) {
	return c.t.request(c.topic, protocol.EventJoin, params)
}

// Push implements realtime.Channel.
func (c *Channel) Push(event string, payload any) (json.RawMessage, error) {
	return c.t.request(c.topic, event, payload)
}

// Leave implements realtime.Channel. The server tears the room session
// down and replies ok.
func (c *Channel) Leave() error {
	_, err := c.t.request(c.topic, protocol.EventLeave, nil)
	return err
}

// OnMessage implements realtime.Channel.
func (c *Channel) OnMessage(fn func(string, json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.taps[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.taps, id)
	}
}

func (c *Channel) fanOut(event string, payload json.RawMessage) {
	c.mu.Lock()
	fns := make([]func(string, json.RawMessage), 0, len(c.taps))
	for _, fn := range c.taps {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, payload)
	}
}
