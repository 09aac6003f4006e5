// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package supervisor wires the long-running services into a suture
// supervision tree with per-layer failure isolation. Supervisor events
// are logged through an slog adapter over the process logger.
package supervisor
