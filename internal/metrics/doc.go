// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package metrics registers the process-wide Prometheus collectors.
// Collectors are package-level promauto vars so call sites can record
// without threading a registry through every constructor. The metrics
// endpoint is served by the HTTP router at /metrics.
package metrics
