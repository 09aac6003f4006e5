// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package bridge

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/protocol"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// fakeHub records locally applied broadcasts.
type fakeHub struct {
	mu    sync.Mutex
	calls []struct {
		roomID string
		msg    protocol.Message
	}
}

func (h *fakeHub) BroadcastLocal(roomID string, msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, struct {
		roomID string
		msg    protocol.Message
	}{roomID, msg})
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *fakeHub) waitForCount(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.count() >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("local broadcasts = %d, want %d", h.count(), want)
}

func startBridge(t *testing.T, b *Bridge) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the subscriber a moment to establish before publishing.
	time.Sleep(10 * time.Millisecond)
}

func TestBridgeRelaysBetweenNodes(t *testing.T) {
	pub, sub := NewPubSub()

	hubA := &fakeHub{}
	hubB := &fakeHub{}
	nodeA := New("node-a", pub, sub, hubA)
	nodeB := New("node-b", pub, sub, hubB)
	startBridge(t, nodeA)
	startBridge(t, nodeB)

	msg, err := protocol.NewMessage("room:doc-1", protocol.EventCursorUpdate, protocol.CursorBroadcast{X: 3, Y: 4}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := nodeA.Publish("doc-1", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	hubB.waitForCount(t, 1)
	hubB.mu.Lock()
	got := hubB.calls[0]
	hubB.mu.Unlock()
	if got.roomID != "doc-1" || got.msg.Event != protocol.EventCursorUpdate {
		t.Fatalf("relayed call = %+v", got)
	}
}

func TestBridgeSuppressesOwnEcho(t *testing.T) {
	pub, sub := NewPubSub()

	hub := &fakeHub{}
	node := New("node-a", pub, sub, hub)
	startBridge(t, node)

	msg, err := protocol.NewMessage("room:doc-1", protocol.EventTypingStart, protocol.TypingBroadcast{}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := node.Publish("doc-1", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The hub already delivered this broadcast locally before it was
	// mirrored; the bridge must not apply it a second time.
	time.Sleep(50 * time.Millisecond)
	if n := hub.count(); n != 0 {
		t.Fatalf("own echo applied %d times, want 0", n)
	}
}

func TestOpenGoChannelBackend(t *testing.T) {
	hub := &fakeHub{}
	b, err := Open(config.BridgeConfig{Backend: BackendGoChannel, NodeID: "node-test"}, hub)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.NodeID() != "node-test" {
		t.Fatalf("node id = %q", b.NodeID())
	}
	startBridge(t, b)

	// A single-node bridge round trip is pure suppression.
	msg, err := protocol.NewMessage("room:doc-1", protocol.EventTypingStop, protocol.TypingBroadcast{}, "")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := b.Publish("doc-1", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := hub.count(); n != 0 {
		t.Fatalf("self-published message applied %d times, want 0", n)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(config.BridgeConfig{Backend: "carrier-pigeon"}, &fakeHub{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
