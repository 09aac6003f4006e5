// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package bridge

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/driftlabs/roomkit/internal/logging"
	"github.com/driftlabs/roomkit/internal/metrics"
	"github.com/driftlabs/roomkit/internal/protocol"
)

// BroadcastTopic is the pub/sub subject carrying room broadcasts between
// nodes.
const BroadcastTopic = "roomkit.broadcast"

// Metadata keys on bridge messages.
const (
	metaNodeID = "node_id"
	metaRoomID = "room_id"
)

// LocalBroadcaster delivers a remote broadcast to this node's sessions.
// Implemented by the room hub.
type LocalBroadcaster interface {
	BroadcastLocal(roomID string, msg protocol.Message)
}

// Bridge mirrors room broadcasts across nodes through a watermill
// pub/sub. Every published message is stamped with the origin node id;
// the consume loop drops messages this node published itself, so a
// broadcast is applied locally exactly once.
type Bridge struct {
	nodeID string
	pub    message.Publisher
	sub    message.Subscriber
	local  LocalBroadcaster
}

// New wires a bridge over an existing publisher/subscriber pair.
func New(nodeID string, pub message.Publisher, sub message.Subscriber, local LocalBroadcaster) *Bridge {
	return &Bridge{nodeID: nodeID, pub: pub, sub: sub, local: local}
}

// NodeID returns this node's bridge identity.
func (b *Bridge) NodeID() string { return b.nodeID }

// Publish implements room.Mirror.
func (b *Bridge) Publish(roomID string, msg protocol.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bridge message: %w", err)
	}

	wm := message.NewMessage(watermill.NewUUID(), payload)
	wm.Metadata.Set(metaNodeID, b.nodeID)
	wm.Metadata.Set(metaRoomID, roomID)

	if err := b.pub.Publish(BroadcastTopic, wm); err != nil {
		return fmt.Errorf("publish bridge message: %w", err)
	}
	return nil
}

// Serve consumes peer broadcasts until ctx is canceled. It satisfies
// suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	msgs, err := b.sub.Subscribe(ctx, BroadcastTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", BroadcastTopic, err)
	}

	logging.Info().Str("node_id", b.nodeID).Msg("bridge consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wm, ok := <-msgs:
			if !ok {
				return nil
			}
			b.consume(wm)
		}
	}
}

func (b *Bridge) consume(wm *message.Message) {
	defer wm.Ack()

	if wm.Metadata.Get(metaNodeID) == b.nodeID {
		metrics.BridgeSuppressed.Inc()
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(wm.Payload, &msg); err != nil {
		logging.Warn().Err(err).Str("uuid", wm.UUID).Msg("malformed bridge message dropped")
		return
	}

	roomID := wm.Metadata.Get(metaRoomID)
	if roomID == "" {
		if id, ok := protocol.RoomID(msg.Topic); ok {
			roomID = id
		} else {
			logging.Warn().Str("topic", msg.Topic).Msg("bridge message without room dropped")
			return
		}
	}

	metrics.BridgeReceived.Inc()
	b.local.BroadcastLocal(roomID, msg)
}

// Close releases the underlying publisher and subscriber.
func (b *Bridge) Close() error {
	var firstErr error
	if err := b.pub.Close(); err != nil {
		firstErr = err
	}
	if err := b.sub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
