// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package realtime

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Callbacks receive transport lifecycle notifications. A transport must
// invoke OnOpen once per established connection, OnClose when the
// connection drops for any reason after Connect, and OnError for socket
// or dial failures. Callbacks may be invoked from the transport's own
// goroutines.
type Callbacks struct {
	OnOpen  func()
	OnClose func()
	OnError func(err error)
}

// Transport is a persistent bidirectional connection multiplexing
// topic-scoped channels over one socket. The Client drives exactly one
// Transport at a time and owns its reconnection policy; implementations
// must not reconnect on their own.
type Transport interface {
	// Connect registers callbacks and starts the connection attempt.
	// Calling Connect while already connected is a no-op success; the
	// transport reports the existing connection through Connected
	// rather than firing OnOpen again.
	Connect(cb Callbacks)

	// Disconnect tears the connection down. OnClose fires if a
	// connection was established.
	Disconnect()

	// Connected reports whether the socket is currently established.
	Connected() bool

	// Channel returns a handle for a topic. Handles for the same topic
	// share the underlying channel state.
	Channel(topic string) Channel
}

// Channel is one topic-scoped logical stream over the transport. Join
// and Push block until the server replies or the transport-level
// timeout elapses; a timeout surfaces as *TimeoutError, a server
// rejection as *ErrorReply.
type Channel interface {
	Join(params any) (json.RawMessage, error)
	Push(event string, payload any) (json.RawMessage, error)
	Leave() error

	// OnMessage registers a tap invoked for every inbound frame on the
	// topic, including replies. The returned function removes exactly
	// this registration.
	OnMessage(fn func(event string, payload json.RawMessage)) func()
}

// TimeoutError reports a join or push that received no reply within the
// transport timeout. The outcome on the server is unknown; callers must
// not treat this as a rejection.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out waiting for reply", e.Op, e.Topic)
}

// Timeout marks the error for net.Error-style checks.
func (e *TimeoutError) Timeout() bool { return true }

// ErrorReply is a structured server rejection of a join or push.
type ErrorReply struct {
	Reason  string            `json:"reason"`
	Fields  map[string]string `json:"fields,omitempty"`
	Payload json.RawMessage   `json:"-"`
}

func (e *ErrorReply) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("server rejected: %s %v", e.Reason, e.Fields)
	}
	return "server rejected: " + e.Reason
}
