// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Client event names for On.
const (
	EventStateChange        = "state_change"
	EventError              = "error"
	EventReconnectScheduled = "reconnect_scheduled"
	EventHeartbeatTimeout   = "heartbeat_timeout"
)

// ReasonMaxAttempts marks the terminal error state reached when the
// reconnect attempt cap is exhausted.
const ReasonMaxAttempts = "max_attempts_reached"

// ErrMaxAttempts is the terminal reconnection error. Only an explicit
// Connect or ForceReconnect leaves this state.
var ErrMaxAttempts = errors.New(ReasonMaxAttempts)

// ErrNoTransport is returned by channel operations before Connect.
var ErrNoTransport = errors.New("no transport: call Connect first")

// Event is delivered to listeners registered with On.
type Event struct {
	Type   string
	State  State
	Err    error
	Reason string

	// Reconnect scheduling details, set for EventReconnectScheduled.
	// Attempt is the 1-based attempt the timer will fire, Delay the
	// computed backoff, At the wall-clock fire time for countdown UIs.
	Attempt int
	Delay   time.Duration
	At      time.Time
}

// Config tunes the connection lifecycle. Zero values select the
// defaults noted per field.
type Config struct {
	// BaseDelay seeds the exponential backoff. Default 1s.
	BaseDelay time.Duration

	// MaxDelay caps the backoff before jitter. Default 30s.
	MaxDelay time.Duration

	// MaxAttempts bounds consecutive reconnect attempts; 0 retries
	// forever. Reaching the cap is terminal until the caller
	// intervenes.
	MaxAttempts int

	// Jitter is the random fraction added on top of the computed
	// delay. Default 0.1.
	Jitter float64

	// HeartbeatInterval is how often liveness is checked. Default 30s.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is the grace beyond the interval before the
	// connection is declared dead. Default 10s.
	HeartbeatTimeout time.Duration

	// Clock and Rand are injection points for deterministic tests.
	Clock Clock
	Rand  func() float64

	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 30 * time.Second
	}
	if out.Jitter <= 0 {
		out.Jitter = 0.1
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = 30 * time.Second
	}
	if out.HeartbeatTimeout <= 0 {
		out.HeartbeatTimeout = 10 * time.Second
	}
	if out.Clock == nil {
		out.Clock = SystemClock()
	}
	if out.Rand == nil {
		out.Rand = rand.Float64
	}
	if out.Logger == nil {
		nop := zerolog.Nop()
		out.Logger = &nop
	}
	return out
}

type subscription struct {
	topic  string
	params any
	ch     Channel
	untap  func()
}

// Client keeps one Transport alive across network interruptions. It
// reconnects with jittered exponential backoff, detects silently dead
// sockets via heartbeat liveness, and rejoins every held channel after
// the connection is re-established, so callers never re-specify their
// room membership.
//
// All methods are safe for concurrent use. Listener callbacks run on
// the goroutine that triggered the event; keep them short.
type Client struct {
	cfg    Config
	clock  Clock
	log    *zerolog.Logger
	events *emitter

	mu        sync.Mutex
	state     State
	transport Transport
	cb        Callbacks
	attempts  int
	lastBeat  time.Time
	manual    bool
	gen       int
	reconnect Timer
	heartbeat Timer
	subs      map[string]*subscription
}

// NewClient builds a Client. Call Connect to start.
func NewClient(cfg Config) *Client {
	full := cfg.withDefaults()
	return &Client{
		cfg:    full,
		clock:  full.Clock,
		log:    full.Logger,
		events: newEmitter(),
		subs:   make(map[string]*subscription),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a listener for a client event. The returned handle
// removes exactly this registration.
func (c *Client) On(event string, fn func(Event)) *Subscription {
	return c.events.on(event, fn)
}

// Connect adopts a transport and starts connecting. A transport held
// from a previous Connect is torn down first. A transport that is
// already connected counts as the success path.
func (c *Client) Connect(t Transport) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.transport
	c.stopTimersLocked()
	c.transport = t
	c.manual = false
	c.attempts = 0
	c.cb = Callbacks{
		OnOpen:  func() { c.handleOpen(gen) },
		OnClose: func() { c.handleClose(gen) },
		OnError: func(err error) { c.handleError(gen, err) },
	}
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	// The old transport's callbacks carry a stale generation and are
	// ignored from here on.
	if old != nil && old != t {
		old.Disconnect()
	}
	c.emitState(changed, StateConnecting)
	t.Connect(c.cb)
	if t.Connected() {
		c.handleOpen(gen)
	}
}

// Disconnect leaves all channels, stops every timer, clears the
// subscription set, and releases the transport. The attempt counter
// resets so a later Connect starts fresh.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	c.stopTimersLocked()
	c.attempts = 0
	subs := c.subs
	c.subs = make(map[string]*subscription)
	t := c.transport
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.untap != nil {
			sub.untap()
		}
		if sub.ch != nil {
			if err := sub.ch.Leave(); err != nil {
				c.log.Debug().Err(err).Str("topic", sub.topic).Msg("leave on disconnect")
			}
		}
	}
	if t != nil {
		t.Disconnect()
	}
	c.emitState(changed, StateDisconnected)
}

// ForceReconnect drops the current connection and redials immediately,
// bypassing backoff and resetting the attempt counter. Used for manual
// "retry now" actions, including from the terminal error state.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	t := c.transport
	if t == nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.stopTimersLocked()
	c.attempts = 0
	c.manual = false
	c.cb = Callbacks{
		OnOpen:  func() { c.handleOpen(gen) },
		OnClose: func() { c.handleClose(gen) },
		OnError: func(err error) { c.handleError(gen, err) },
	}
	changed := c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	c.emitState(changed, StateReconnecting)
	t.Disconnect()
	t.Connect(c.cb)
	if t.Connected() {
		c.handleOpen(gen)
	}
}

// JoinChannel records the topic in the subscription set and performs
// the join handshake. The subscription survives reconnects; after any
// drop the client rejoins it automatically. A rejected or timed-out
// join removes the subscription again, since membership was never
// established.
func (c *Client) JoinChannel(topic string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	t := c.transport
	if t == nil {
		c.mu.Unlock()
		return nil, ErrNoTransport
	}
	if old := c.subs[topic]; old != nil && old.untap != nil {
		old.untap()
	}
	sub := &subscription{topic: topic, params: params}
	c.subs[topic] = sub
	c.mu.Unlock()

	resp, err := c.joinSubscription(t, sub)
	if err != nil {
		c.mu.Lock()
		if c.subs[topic] == sub {
			delete(c.subs, topic)
		}
		c.mu.Unlock()
		if sub.untap != nil {
			sub.untap()
		}
		return nil, err
	}
	return resp, nil
}

// LeaveChannel removes the topic from the subscription set and tells
// the server. Unknown topics are a no-op.
func (c *Client) LeaveChannel(topic string) error {
	c.mu.Lock()
	sub := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()
	if sub == nil {
		return nil
	}
	if sub.untap != nil {
		sub.untap()
	}
	if sub.ch == nil {
		return nil
	}
	return sub.ch.Leave()
}

// Push sends an event on a joined topic and waits for the reply.
func (c *Client) Push(topic, event string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	sub := c.subs[topic]
	c.mu.Unlock()
	if sub == nil || sub.ch == nil {
		return nil, fmt.Errorf("push %s: topic %s not joined", event, topic)
	}
	return sub.ch.Push(event, payload)
}

// joinSubscription binds a channel handle, taps it for heartbeat
// liveness, and runs the join handshake.
func (c *Client) joinSubscription(t Transport, sub *subscription) (json.RawMessage, error) {
	ch := t.Channel(sub.topic)
	untap := ch.OnMessage(func(string, json.RawMessage) { c.touch() })
	resp, err := ch.Join(sub.params)

	c.mu.Lock()
	current := c.subs[sub.topic] == sub
	if current {
		sub.ch = ch
		sub.untap = untap
	}
	c.mu.Unlock()
	if !current {
		untap()
	}
	return resp, err
}

// touch refreshes the liveness timestamp. Any inbound channel traffic
// counts, not just heartbeat replies.
func (c *Client) touch() {
	c.mu.Lock()
	c.lastBeat = c.clock.Now()
	c.mu.Unlock()
}

func (c *Client) handleOpen(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.lastBeat = c.clock.Now()
	changed := c.setStateLocked(StateConnected)
	c.scheduleHeartbeatLocked(gen)
	t := c.transport
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	c.emitState(changed, StateConnected)
	if len(subs) > 0 {
		go c.rejoinAll(gen, t, subs)
	}
}

// rejoinAll re-establishes every held subscription after a reconnect.
// Each topic is rejoined exactly once per open; failures surface as
// error events rather than aborting the remaining topics.
func (c *Client) rejoinAll(gen int, t Transport, subs []*subscription) {
	for _, sub := range subs {
		c.mu.Lock()
		stale := gen != c.gen || c.subs[sub.topic] != sub
		if sub.untap != nil {
			sub.untap()
			sub.untap = nil
		}
		c.mu.Unlock()
		if stale {
			continue
		}
		if _, err := c.joinSubscription(t, sub); err != nil {
			c.log.Warn().Err(err).Str("topic", sub.topic).Msg("rejoin failed")
			c.events.emit(Event{Type: EventError, Err: err})
		}
	}
}

func (c *Client) handleClose(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		return
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
	prior := c.state
	c.mu.Unlock()

	switch prior {
	case StateConnected:
		// An established session dropped; try to get it back.
		c.scheduleReconnect()
	case StateReconnecting:
		// Normally a no-op: the armed backoff timer owns the next
		// attempt. It matters when a forced reconnect lost the race
		// with the old socket's teardown and no timer is pending.
		c.scheduleReconnect()
	default:
		c.mu.Lock()
		changed := c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		c.emitState(changed, StateDisconnected)
	}
}

func (c *Client) handleError(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	st := c.state
	c.mu.Unlock()

	c.events.emit(Event{Type: EventError, Err: err, State: st})
	if st == StateConnecting || st == StateReconnecting {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the backoff timer for the next attempt, or
// enters the terminal error state when the attempt cap is exhausted.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manual || c.reconnect != nil {
		c.mu.Unlock()
		return
	}
	if c.cfg.MaxAttempts > 0 && c.attempts >= c.cfg.MaxAttempts {
		changed := c.setStateLocked(StateError)
		c.mu.Unlock()
		c.emitState(changed, StateError)
		c.events.emit(Event{Type: EventError, Err: ErrMaxAttempts, Reason: ReasonMaxAttempts, State: StateError})
		return
	}
	gen := c.gen
	attempt := c.attempts
	delay := c.backoff(attempt)
	at := c.clock.Now().Add(delay)
	c.reconnect = c.clock.AfterFunc(delay, func() { c.reconnectFire(gen) })
	changed := c.setStateLocked(StateReconnecting)
	c.mu.Unlock()

	c.emitState(changed, StateReconnecting)
	c.events.emit(Event{
		Type:    EventReconnectScheduled,
		State:   StateReconnecting,
		Attempt: attempt + 1,
		Delay:   delay,
		At:      at,
	})
	c.log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("reconnect scheduled")
}

func (c *Client) reconnectFire(gen int) {
	c.mu.Lock()
	// A fired timer releases its slot even when it belongs to a dead
	// generation, otherwise scheduleReconnect would treat the slot as
	// armed forever.
	c.reconnect = nil
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		return
	}
	c.attempts++
	t := c.transport
	cb := c.cb
	c.mu.Unlock()

	t.Connect(cb)
	if t.Connected() {
		c.handleOpen(gen)
	}
}

// backoff computes min(base*2^attempt, max) plus a random jitter
// fraction of that delay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.MaxDelay
	if attempt < 62 {
		if d := c.cfg.BaseDelay << uint(attempt); d > 0 && d < c.cfg.MaxDelay {
			delay = d
		}
	}
	jitter := time.Duration(c.cfg.Jitter * c.cfg.Rand() * float64(delay))
	return delay + jitter
}

func (c *Client) scheduleHeartbeatLocked(gen int) {
	c.heartbeat = c.clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.heartbeatTick(gen) })
}

// heartbeatTick declares the socket dead when no inbound traffic
// arrived within interval+timeout, then forces a disconnect so the
// regular close path reconnects. Catches sockets that die without
// firing a close event.
func (c *Client) heartbeatTick(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	idle := c.clock.Now().Sub(c.lastBeat)
	if idle > c.cfg.HeartbeatInterval+c.cfg.HeartbeatTimeout {
		c.heartbeat = nil
		t := c.transport
		c.mu.Unlock()
		c.log.Warn().Dur("idle", idle).Msg("heartbeat timeout")
		c.events.emit(Event{Type: EventHeartbeatTimeout, State: StateConnected})
		t.Disconnect()
		return
	}
	c.scheduleHeartbeatLocked(gen)
	c.mu.Unlock()
}

func (c *Client) stopTimersLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}

// setStateLocked transitions the state and reports whether it changed.
func (c *Client) setStateLocked(s State) bool {
	if c.state == s {
		return false
	}
	c.state = s
	return true
}

func (c *Client) emitState(changed bool, s State) {
	if changed {
		c.events.emit(Event{Type: EventStateChange, State: s})
	}
}
