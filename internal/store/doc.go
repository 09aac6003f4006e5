// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package store persists comments and room activity in an embedded
// badger database. All mutating operations enforce ownership at this
// layer: a comment that exists but belongs to another user fails with
// ErrUnauthorized, never ErrNotFound, so callers cannot probe for the
// existence of other users' comments. A circuit breaker wrapper shields
// room sessions from a failing backend.
package store
