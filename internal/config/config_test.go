// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"server.port", cfg.Server.Port, 4010},
		{"realtime.cursor_throttle_interval", cfg.Realtime.CursorThrottleInterval, 16 * time.Millisecond},
		{"realtime.heartbeat_interval", cfg.Realtime.HeartbeatInterval, 30 * time.Second},
		{"realtime.presence_idle_timeout", cfg.Realtime.PresenceIdleTimeout, 5 * time.Second},
		{"store.backend", cfg.Store.Backend, "badger"},
		{"bridge.enabled", cfg.Bridge.Enabled, false},
		{"logging.level", cfg.Logging.Level, "info"},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32 bytes"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero throttle", func(c *Config) { c.Realtime.CursorThrottleInterval = 0 }, "cursor_throttle_interval"},
		{"negative quota", func(c *Config) { c.Realtime.RoomClientQuota = -1 }, "room_client_quota"},
		{"bad store backend", func(c *Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"badger without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"memory backend ok", func(c *Config) { c.Store.Backend = "memory"; c.Store.Path = "" }, ""},
		{
			"bad bridge backend",
			func(c *Config) { c.Bridge.Enabled = true; c.Bridge.Backend = "kafka" },
			"bridge.backend",
		},
		{
			"nats bridge without url",
			func(c *Config) {
				c.Bridge.Enabled = true
				c.Bridge.Backend = "nats"
				c.Bridge.URL = ""
			},
			"bridge.url",
		},
		{
			"nats bridge embedded ok",
			func(c *Config) {
				c.Bridge.Enabled = true
				c.Bridge.Backend = "nats"
				c.Bridge.URL = ""
				c.Bridge.EmbeddedServer = true
			},
			"",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ROOMKIT_SERVER_PORT", "server.port"},
		{"ROOMKIT_AUTH_JWT_SECRET", "auth.jwt_secret"},
		{"ROOMKIT_REALTIME_HEARTBEAT_INTERVAL", "realtime.heartbeat_interval"},
		{"ROOMKIT_BRIDGE_NODE_ID", "bridge.node_id"},
		{"ROOMKIT_LOGGING", "logging"},
	}

	for _, tc := range tests {
		if got := envTransformFunc(tc.in); got != tc.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 5000
auth:
  jwt_secret: "` + testSecret + `"
store:
  backend: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("ROOMKIT_SERVER_PORT", "6000")
	t.Setenv("ROOMKIT_REALTIME_ROOM_CLIENT_QUOTA", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Env beats file.
	if cfg.Server.Port != 6000 {
		t.Errorf("server.port = %d, want 6000 (env override)", cfg.Server.Port)
	}
	// File beats defaults.
	if cfg.Store.Backend != "memory" {
		t.Errorf("store.backend = %q, want memory (file override)", cfg.Store.Backend)
	}
	// Env-only value.
	if cfg.Realtime.RoomClientQuota != 25 {
		t.Errorf("room_client_quota = %d, want 25", cfg.Realtime.RoomClientQuota)
	}
	// Defaults survive.
	if cfg.Realtime.CursorThrottleInterval != 16*time.Millisecond {
		t.Errorf("cursor_throttle_interval = %v, want 16ms", cfg.Realtime.CursorThrottleInterval)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  jwt_secret: tooshort\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for short secret")
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  jwt_secret: \""+testSecret+"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("ROOMKIT_SERVER_CORS_ORIGINS", "https://app.example.com, https://other.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("cors_origins = %v, want two parsed origins", cfg.Server.CORSOrigins)
	}
}
