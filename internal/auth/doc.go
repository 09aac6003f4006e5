// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package auth handles join-time authorization for room sessions.
//
// Roomkit does not issue credentials. Clients arrive with a room token —
// an HMAC-signed JWT minted by the account service — listing the rooms it
// grants, the membership role, and display identity. This package
// verifies those tokens, enforces the per-room connection quota, and
// resolves the owning organization for plan feature gates.
package auth
