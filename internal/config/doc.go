// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package config loads and validates Roomkit server configuration.
//
// Configuration is layered with koanf: struct defaults, then an optional
// YAML file, then ROOMKIT_-prefixed environment variables. The realtime
// section carries the synchronization knobs (cursor throttle interval,
// heartbeat cadence, presence idle timeout, room quota) consumed by the
// room session protocol and advertised to SDK clients.
package config
