// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/metrics"
	"github.com/driftlabs/roomkit/internal/protocol"
	"github.com/driftlabs/roomkit/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// Conn is one websocket connection multiplexing room sessions over
// topic-scoped frames. The read pump owns the session map; frames for a
// topic dispatch in arrival order, which gives per-sender FIFO for
// broadcasts.
type Conn struct {
	ws       *websocket.Conn
	deps     room.Deps
	send     chan protocol.Message
	sessions map[string]*room.Session

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, deps room.Deps, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		ws:       ws,
		deps:     deps,
		send:     make(chan protocol.Message, sendBuffer),
		sessions: make(map[string]*room.Session),
	}
}

// Send implements room.Outbox. It never blocks: a full buffer drops the
// frame and reports false so the hub can count the slow consumer.
func (c *Conn) Send(msg protocol.Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Run serves the connection until the socket closes or ctx is canceled.
func (c *Conn) Run(ctx context.Context) {
	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Conn) readPump(ctx context.Context) {
	defer func() {
		// Connection teardown cascades to every session on it.
		for _, s := range c.sessions {
			s.Terminate()
		}
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg protocol.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		// Any inbound frame proves the peer is alive.
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logging.Error().Err(err).Msg("failed to refresh read deadline")
			return
		}

		c.route(ctx, msg)
	}
}

// route finds or creates the session for the frame's topic and hands the
// frame over.
func (c *Conn) route(ctx context.Context, msg protocol.Message) {
	if _, ok := protocol.RoomID(msg.Topic); !ok {
		// Connection-level heartbeats carry no room topic.
		if msg.Event == protocol.EventHeartbeat {
			if reply, err := protocol.OKReply(msg.Topic, msg.Ref, nil); err == nil {
				c.Send(reply)
			}
			return
		}
		c.replyErr(msg, protocol.ReasonNotFound)
		return
	}

	s, ok := c.sessions[msg.Topic]
	if !ok {
		if msg.Event != protocol.EventJoin {
			c.replyErr(msg, protocol.ReasonNotFound)
			return
		}
		var err error
		s, err = room.NewSession(msg.Topic, c, c.deps)
		if err != nil {
			c.replyErr(msg, protocol.ReasonInvalidPayload)
			return
		}
		c.sessions[msg.Topic] = s
	}

	s.Handle(ctx, msg)

	if msg.Event == protocol.EventLeave {
		delete(c.sessions, msg.Topic)
	}
}

func (c *Conn) replyErr(msg protocol.Message, reason protocol.Reason) {
	if reply, err := protocol.ErrReply(msg.Topic, msg.Ref, reason); err == nil {
		c.Send(reply)
	}
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case msg := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				logging.Debug().Err(err).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}
