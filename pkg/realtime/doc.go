// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package realtime is the embeddable Roomkit client SDK.
//
// A Client owns one Transport and keeps it alive across network
// interruptions: jittered exponential backoff, heartbeat liveness
// detection, and automatic rejoin of every held channel after a
// reconnect. Channel operations return ok payloads, *ErrorReply server
// rejections, or *TimeoutError when the outcome is unknown.
//
// The package also carries the client half of the cursor pipeline: a
// trailing-edge CursorThrottle for outbound positions and a
// CursorInterpolator that smooths inbound remote positions for
// rendering. Presence translates the wire presence frames into a flat
// first-meta-wins user list with join/leave/sync callbacks.
//
// The concrete WebSocket transport lives in the wstransport
// subpackage; the interfaces here allow in-memory transports for
// tests.
package realtime
