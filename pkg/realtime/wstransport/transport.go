// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package wstransport

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/driftlabs/roomkit/internal/protocol"
	"github.com/driftlabs/roomkit/pkg/realtime"
)

// Config tunes the WebSocket transport.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is sent with the upgrade request, e.g. Authorization.
	Header http.Header

	// ReplyTimeout bounds every join and push. Default 10s.
	ReplyTimeout time.Duration

	// KeepAlive is the period of connection-level heartbeat frames.
	// Their replies count as inbound traffic for the client's liveness
	// check even in otherwise quiet rooms. Default 30s.
	KeepAlive time.Duration

	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ReplyTimeout <= 0 {
		out.ReplyTimeout = 10 * time.Second
	}
	if out.KeepAlive <= 0 {
		out.KeepAlive = 30 * time.Second
	}
	if out.Logger == nil {
		nop := zerolog.Nop()
		out.Logger = &nop
	}
	return out
}

// Transport is the concrete realtime.Transport over a gorilla/websocket
// connection. One socket multiplexes every topic; replies correlate to
// requests by ref.
type Transport struct {
	cfg Config
	log *zerolog.Logger
	ref atomic.Uint64

	mu       sync.Mutex
	conn     *websocket.Conn
	cb       realtime.Callbacks
	done     chan struct{}
	pending  map[string]chan protocol.Reply
	channels map[string]*Channel

	writeMu sync.Mutex
}

// New builds a disconnected transport. realtime.Client drives Connect.
func New(cfg Config) *Transport {
	full := cfg.withDefaults()
	return &Transport{
		cfg:      full,
		log:      full.Logger,
		pending:  make(map[string]chan protocol.Reply),
		channels: make(map[string]*Channel),
	}
}

// Connect implements realtime.Transport. Dial failures surface through
// OnError; an established socket fires OnOpen and starts the read and
// keepalive loops.
func (t *Transport) Connect(cb realtime.Callbacks) {
	t.mu.Lock()
	t.cb = cb
	if t.conn != nil {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	conn, resp, err := websocket.DefaultDialer.Dial(t.cfg.URL, t.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		// Lost a connect race; keep the first socket.
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	go t.readLoop(conn, done)
	go t.keepAlive(done)
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
}

// Disconnect implements realtime.Transport. The read loop observes the
// closed socket and fires OnClose exactly once; Disconnect blocks until
// that teardown finished, so an immediate redial never races the old
// socket.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	t.mu.Unlock()
	if conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()
	<-done
}

// Connected implements realtime.Transport.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Channel implements realtime.Transport. Handles are shared per topic.
func (t *Transport) Channel(topic string) realtime.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[topic]
	if !ok {
		ch = newChannel(t, topic)
		t.channels[topic] = ch
	}
	return ch
}

func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer t.teardown(conn, done)
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Debug().Err(err).Msg("read loop ended")
			}
			return
		}
		t.dispatch(msg)
	}
}

func (t *Transport) dispatch(msg protocol.Message) {
	if msg.Event == protocol.EventReply && msg.Ref != "" {
		var reply protocol.Reply
		if err := json.Unmarshal(msg.Payload, &reply); err == nil {
			t.mu.Lock()
			ch := t.pending[msg.Ref]
			delete(t.pending, msg.Ref)
			t.mu.Unlock()
			if ch != nil {
				ch <- reply
			}
		}
	}

	t.mu.Lock()
	var targets []*Channel
	if msg.Topic == "" {
		// Connection-level frames prove liveness for every channel.
		for _, ch := range t.channels {
			targets = append(targets, ch)
		}
	} else if ch, ok := t.channels[msg.Topic]; ok {
		targets = append(targets, ch)
	}
	t.mu.Unlock()

	for _, ch := range targets {
		ch.fanOut(msg.Event, msg.Payload)
	}
}

// keepAlive pushes connection-level heartbeat frames so quiet rooms
// still see periodic inbound traffic.
func (t *Transport) keepAlive(done chan struct{}) {
	ticker := time.NewTicker(t.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			msg := protocol.Message{Event: protocol.EventHeartbeat, Ref: t.nextRef()}
			if err := t.write(msg); err != nil {
				return
			}
		}
	}
}

func (t *Transport) teardown(conn *websocket.Conn, done chan struct{}) {
	_ = conn.Close()
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	close(done)
	cb := t.cb
	t.mu.Unlock()
	if cb.OnClose != nil {
		cb.OnClose()
	}
}

func (t *Transport) nextRef() string {
	return strconv.FormatUint(t.ref.Add(1), 10)
}

// request writes a frame and waits for the correlated reply within the
// reply timeout.
func (t *Transport) request(topic, event string, payload any) (json.RawMessage, error) {
	ref := t.nextRef()
	msg, err := protocol.NewMessage(topic, event, payload, ref)
	if err != nil {
		return nil, err
	}

	replyCh := make(chan protocol.Reply, 1)
	t.mu.Lock()
	t.pending[ref] = replyCh
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, ref)
		t.mu.Unlock()
	}()

	if err := t.write(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(t.cfg.ReplyTimeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		return decodeReply(reply)
	case <-timer.C:
		return nil, &realtime.TimeoutError{Op: event, Topic: topic}
	}
}

func (t *Transport) write(msg protocol.Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return &websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "not connected"}
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func decodeReply(reply protocol.Reply) (json.RawMessage, error) {
	if reply.Status == protocol.StatusOK {
		return reply.Response, nil
	}
	out := &realtime.ErrorReply{Payload: reply.Response}
	var reason struct {
		Reason string            `json:"reason"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(reply.Response, &reason); err == nil {
		out.Reason = reason.Reason
		out.Fields = reason.Fields
	}
	if out.Reason == "" {
		out.Reason = "error"
	}
	return nil, out
}
