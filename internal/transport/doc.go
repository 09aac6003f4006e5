// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package transport serves the websocket endpoint. Each connection runs
// a read pump and a write pump; the read pump routes topic-scoped frames
// to room sessions and the write pump drains a bounded outbound buffer,
// dropping frames for consumers that cannot keep up rather than letting
// one slow client stall a room's fan-out.
package transport
