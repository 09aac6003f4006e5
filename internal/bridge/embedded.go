// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package bridge

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/driftlabs/roomkit/internal/config"
)

// EmbeddedServer runs an in-process NATS server so single-binary
// deployments can cluster later without a config change beyond the URL.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts an embedded NATS server and waits for it to
// accept connections.
func NewEmbeddedServer(cfg config.BridgeConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "roomkit-" + cfg.NodeID,
		Host:       "127.0.0.1",
		Port:       -1, // pick a free port
		StoreDir:   cfg.StoreDir,
		NoLog:      true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for local clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
