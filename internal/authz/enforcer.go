// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

// Package authz maps room membership roles to allowed actions using
// Casbin RBAC. The model and policy are embedded; a deployment can
// override both with files to add custom roles without a rebuild.
package authz

import (
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	_ "embed"

	"github.com/driftlabs/roomkit/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions evaluated against the room object.
const (
	ActionRead  = "read"
	ActionWrite = "write"

	objectRoom = "room"
)

// Enforcer answers "may this role perform this action in a room".
// Safe for concurrent use.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// Config points the enforcer at external model/policy files.
// Empty paths fall back to the embedded defaults.
type Config struct {
	ModelPath  string
	PolicyPath string
}

// NewEnforcer creates an enforcer from embedded or file-based policy.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	var m model.Model
	var err error

	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// CanWrite reports whether the role may mutate room state
// (cursor/selection/typing broadcasts, comments, reactions).
func (e *Enforcer) CanWrite(role models.Role) bool {
	ok, err := e.enforcer.Enforce(string(role), objectRoom, ActionWrite)
	if err != nil {
		return false
	}
	return ok
}

// CanRead reports whether the role may observe room state.
func (e *Enforcer) CanRead(role models.Role) bool {
	ok, err := e.enforcer.Enforce(string(role), objectRoom, ActionRead)
	if err != nil {
		return false
	}
	return ok
}

// loadEmbeddedPolicy parses the embedded policy CSV into the enforcer.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}

		var err error
		switch parts[0] {
		case "p":
			_, err = enforcer.AddPolicy(toInterfaces(parts[1:])...)
		case "g":
			_, err = enforcer.AddGroupingPolicy(toInterfaces(parts[1:])...)
		}
		if err != nil {
			return fmt.Errorf("failed to load policy line %q: %w", line, err)
		}
	}
	return nil
}

func toInterfaces(parts []string) []interface{} {
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
