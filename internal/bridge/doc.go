// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package bridge mirrors room broadcasts between nodes through a
// watermill pub/sub, so clients of the same room connected to different
// nodes see each other's events. Messages carry the origin node id and
// the consume loop suppresses this node's own messages, which the hub
// already delivered locally. Backends: an in-process gochannel for
// single-node deployments and tests, and NATS (optionally embedded) for
// clusters.
package bridge
