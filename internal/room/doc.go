// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package room implements the server-side room session protocol: one
// logical session per (room, connection), joined through a token
// handshake and driven by typed client events.
//
// Sessions move through unjoined -> joining -> joined -> left. A join
// verifies the room token, resolves the owning organization, and checks
// the connection quota before the session is admitted; the after-join
// step then syncs the new client with the presence snapshot and current
// room state.
//
// Fan-out rules: cursor, selection, and typing events relay to every
// other member (the sender already has its own state), while persisted
// comment and reaction mutations broadcast to all members including the
// sender, who needs the canonical server-assigned result. Mutations are
// strictly authorize, then persist, then broadcast; nothing is fanned
// out when persistence fails.
package room
