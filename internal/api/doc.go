// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package api assembles the HTTP router: the /ws upgrade endpoint
// (rate-limited per IP), health probes, a stats snapshot, and the
// Prometheus scrape endpoint. All realtime traffic flows over the
// websocket; there is no REST CRUD surface in this service.
package api
