// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package bridge

import (
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/logging"
)

// Backend names accepted by config.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Open builds a bridge from config and wires it to the local hub.
// The gochannel backend is in-process only; it exists so single-node
// deployments and tests run the same code path as clustered ones.
func Open(cfg config.BridgeConfig, local LocalBroadcaster) (*Bridge, error) {
	logger := newWatermillLogger()

	switch cfg.Backend {
	case BackendGoChannel, "":
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		return New(cfg.NodeID, pubsub, pubsub, local), nil

	case BackendNATS:
		url := cfg.URL
		if cfg.EmbeddedServer {
			es, err := NewEmbeddedServer(cfg)
			if err != nil {
				return nil, err
			}
			url = es.ClientURL()
			logging.Info().Str("url", url).Msg("embedded nats server started")
		}

		natsOpts := []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(time.Second),
			natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
				if err != nil {
					logging.Warn().Err(err).Msg("nats disconnected")
				}
			}),
			natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
				logging.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			}),
		}

		// Broadcast traffic is ephemeral; core NATS fan-out is enough
		// and JetStream persistence would only add latency.
		pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
			URL:         url,
			NatsOptions: natsOpts,
			Marshaler:   &wmNats.NATSMarshaler{},
			JetStream:   wmNats.JetStreamConfig{Disabled: true},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create nats publisher: %w", err)
		}

		sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
			URL:         url,
			NatsOptions: natsOpts,
			Unmarshaler: &wmNats.NATSMarshaler{},
			JetStream:   wmNats.JetStreamConfig{Disabled: true},
		}, logger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("create nats subscriber: %w", err)
		}

		return New(cfg.NodeID, pub, sub, local), nil

	default:
		return nil, fmt.Errorf("unknown bridge backend %q", cfg.Backend)
	}
}

// NewPubSub returns a fresh in-process gochannel pub/sub. Tests that
// simulate two nodes share one pub/sub across two Bridge instances.
func NewPubSub() (message.Publisher, message.Subscriber) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, newWatermillLogger())
	return pubsub, pubsub
}
