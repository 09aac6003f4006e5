// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package authz

import (
	"testing"

	"github.com/driftlabs/roomkit/internal/models"
)

func TestEmbeddedPolicy(t *testing.T) {
	e, err := NewEnforcer(Config{})
	if err != nil {
		t.Fatalf("NewEnforcer error: %v", err)
	}

	tests := []struct {
		role     models.Role
		canRead  bool
		canWrite bool
	}{
		{models.RoleViewer, true, false},
		{models.RoleMember, true, true},
		{models.RoleAdmin, true, true},
		{models.Role("ghost"), false, false},
	}

	for _, tc := range tests {
		if got := e.CanRead(tc.role); got != tc.canRead {
			t.Errorf("CanRead(%s) = %v, want %v", tc.role, got, tc.canRead)
		}
		if got := e.CanWrite(tc.role); got != tc.canWrite {
			t.Errorf("CanWrite(%s) = %v, want %v", tc.role, got, tc.canWrite)
		}
	}
}

func TestFilePolicyOverride(t *testing.T) {
	// Missing files fall back to embedded policy rather than failing.
	e, err := NewEnforcer(Config{ModelPath: "/nonexistent/model.conf", PolicyPath: "/nonexistent/policy.csv"})
	if err != nil {
		t.Fatalf("NewEnforcer error: %v", err)
	}
	if !e.CanWrite(models.RoleMember) {
		t.Error("expected member write access from embedded fallback")
	}
}
