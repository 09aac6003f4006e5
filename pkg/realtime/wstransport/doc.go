// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package wstransport is the WebSocket implementation of the
// realtime.Transport contract. It dials the server's /ws endpoint,
// multiplexes topic channels over the single socket, correlates
// replies to requests by ref, and converts missing replies into the
// typed timeout outcome.
package wstransport
