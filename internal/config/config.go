// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Roomkit server.
// All values can be set via YAML config file or ROOMKIT_-prefixed
// environment variables (ROOMKIT_SERVER_PORT -> server.port).
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Auth     AuthConfig     `koanf:"auth"`
	Store    StoreConfig    `koanf:"store"`
	Bridge   BridgeConfig   `koanf:"bridge"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// ShutdownTimeout bounds graceful drain on SIGTERM.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins for the upgrade endpoint.
	CORSOrigins []string `koanf:"cors_origins"`

	// UpgradeRateLimit caps WebSocket upgrade requests per IP per minute.
	UpgradeRateLimit int `koanf:"upgrade_rate_limit"`
}

// RealtimeConfig holds the knobs consumed by the synchronization core.
// These mirror the client SDK defaults; both sides must agree on the
// heartbeat cadence for liveness detection to work.
type RealtimeConfig struct {
	// CursorThrottleInterval is the minimum gap between broadcast cursor
	// updates per (room, user). Updates inside the window are dropped.
	CursorThrottleInterval time.Duration `koanf:"cursor_throttle_interval"`

	// HeartbeatInterval is the expected client heartbeat cadence.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// HeartbeatTimeout is the grace period past the interval before a
	// connection is considered dead.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`

	// PresenceIdleTimeout controls when a silent remote cursor is hidden;
	// entries are removed after twice this duration.
	PresenceIdleTimeout time.Duration `koanf:"presence_idle_timeout"`

	// RoomClientQuota caps concurrent clients per room. 0 = unlimited.
	RoomClientQuota int `koanf:"room_client_quota"`

	// SendBuffer is the per-client outbound message buffer. A client
	// that cannot drain this buffer is evicted.
	SendBuffer int `koanf:"send_buffer"`
}

// AuthConfig holds join-authorization settings.
type AuthConfig struct {
	// JWTSecret signs room tokens (HMAC-SHA256). Required.
	JWTSecret string `koanf:"jwt_secret"`

	// Audience, when set, must match the token "aud" claim.
	Audience string `koanf:"audience"`

	// Leeway tolerates clock skew when validating exp/nbf.
	Leeway time.Duration `koanf:"leeway"`

	// OrgsFile points at a JSON file describing organizations and
	// their plan features. Optional; without it every room is treated
	// as a personal room with no gated features.
	OrgsFile string `koanf:"orgs_file"`
}

// StoreConfig holds persistence settings for comments and activity.
type StoreConfig struct {
	// Backend selects the store implementation: "badger" or "memory".
	Backend string `koanf:"backend"`

	// Path is the badger data directory.
	Path string `koanf:"path"`

	// BreakerMaxFailures trips the persistence circuit breaker.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// BridgeConfig holds the cross-node broadcast relay settings.
type BridgeConfig struct {
	// Enabled turns on cross-node relaying. Single-node deployments
	// leave this off; the in-process hub handles all fan-out.
	Enabled bool `koanf:"enabled"`

	// Backend selects the message bus: "gochannel" or "nats".
	Backend string `koanf:"backend"`

	// NodeID identifies this node for echo suppression. Auto-generated
	// when empty.
	NodeID string `koanf:"node_id"`

	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             4010,
			ShutdownTimeout:  15 * time.Second,
			CORSOrigins:      []string{"*"},
			UpgradeRateLimit: 60,
		},
		Realtime: RealtimeConfig{
			CursorThrottleInterval: 16 * time.Millisecond,
			HeartbeatInterval:      30 * time.Second,
			HeartbeatTimeout:       10 * time.Second,
			PresenceIdleTimeout:    5 * time.Second,
			RoomClientQuota:        0,
			SendBuffer:             256,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			Audience:  "",
			Leeway:    30 * time.Second,
		},
		Store: StoreConfig{
			Backend:            "badger",
			Path:               "/data/roomkit",
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Bridge: BridgeConfig{
			Enabled:        false,
			Backend:        "gochannel",
			NodeID:         "",
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			StoreDir:       "/data/nats/jetstream",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for invalid combinations.
// Called after loading; errors here abort startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}
	if c.Realtime.CursorThrottleInterval <= 0 {
		return fmt.Errorf("realtime.cursor_throttle_interval must be positive")
	}
	if c.Realtime.HeartbeatInterval <= 0 || c.Realtime.HeartbeatTimeout <= 0 {
		return fmt.Errorf("realtime heartbeat interval and timeout must be positive")
	}
	if c.Realtime.PresenceIdleTimeout <= 0 {
		return fmt.Errorf("realtime.presence_idle_timeout must be positive")
	}
	if c.Realtime.RoomClientQuota < 0 {
		return fmt.Errorf("realtime.room_client_quota must be >= 0")
	}
	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be badger or memory, got %q", c.Store.Backend)
	}
	if c.Bridge.Enabled {
		switch c.Bridge.Backend {
		case "gochannel":
		case "nats":
			if c.Bridge.URL == "" && !c.Bridge.EmbeddedServer {
				return fmt.Errorf("bridge.url is required when bridge.backend is nats without an embedded server")
			}
		default:
			return fmt.Errorf("bridge.backend must be gochannel or nats, got %q", c.Bridge.Backend)
		}
	}
	return nil
}
