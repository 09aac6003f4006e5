// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package protocol defines the Roomkit wire format.
//
// Every frame is a topic-scoped envelope:
//
//	{ "topic": "room:<room_id>", "event": "<name>", "payload": {...}, "ref": "<correlation_id>" }
//
// Inbound client events are decoded at the boundary into a closed set of
// typed payloads (see DecodeClientEvent) so that session dispatch is an
// exhaustive type switch rather than string matching. Payloads are
// validated with go-playground/validator before they reach a session.
//
// Replies echo the request ref with {"status": "ok"|"error", "response": ...}.
// A transport-level timeout is a client-side outcome, never a reply.
package protocol
