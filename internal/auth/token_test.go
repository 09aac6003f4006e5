// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: testSecret, Leeway: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func issueToken(t *testing.T, role models.Role, rooms []string, ttl time.Duration) string {
	t.Helper()
	identity := models.Identity{UserID: "u1", DisplayName: "Ada", Color: "#ff8800"}
	token, err := IssueRoomToken(testSecret, identity, role, "org-1", rooms, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestVerifyRoomToken(t *testing.T) {
	v := testVerifier(t)
	token := issueToken(t, models.RoleMember, []string{"r1", "r2"}, time.Minute)

	grant, err := v.VerifyRoomToken(token, "r1")
	if err != nil {
		t.Fatalf("VerifyRoomToken error: %v", err)
	}
	if grant.Identity.UserID != "u1" || grant.Identity.DisplayName != "Ada" {
		t.Errorf("unexpected identity: %+v", grant.Identity)
	}
	if grant.Role != models.RoleMember {
		t.Errorf("role = %q, want member", grant.Role)
	}
	if grant.OrgID != "org-1" {
		t.Errorf("org = %q, want org-1", grant.OrgID)
	}
}

func TestVerifyRoomTokenFailures(t *testing.T) {
	v := testVerifier(t)

	tests := []struct {
		name    string
		token   string
		roomID  string
		wantErr error
	}{
		{
			name:    "room not granted",
			token:   issueToken(t, models.RoleMember, []string{"r1"}, time.Minute),
			roomID:  "r9",
			wantErr: ErrRoomNotGranted,
		},
		{
			name:    "expired",
			token:   issueToken(t, models.RoleMember, []string{"r1"}, -time.Hour),
			roomID:  "r1",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			roomID:  "r1",
			wantErr: ErrInvalidToken,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.VerifyRoomToken(tc.token, tc.roomID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestVerifyRoomTokenWrongSecret(t *testing.T) {
	v := testVerifier(t)
	identity := models.Identity{UserID: "u1"}
	token, err := IssueRoomToken("ffffffffffffffffffffffffffffffff", identity, models.RoleMember, "", []string{"r1"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.VerifyRoomToken(token, "r1"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRoomTokenUnknownRole(t *testing.T) {
	v := testVerifier(t)
	identity := models.Identity{UserID: "u1"}
	token, err := IssueRoomToken(testSecret, identity, models.Role("superuser"), "", []string{"r1"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := v.VerifyRoomToken(token, "r1"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestNewVerifierShortSecret(t *testing.T) {
	if _, err := NewVerifier(config.AuthConfig{JWTSecret: "short"}); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestRoomQuota(t *testing.T) {
	q := NewRoomQuota(2)

	if !q.Acquire("r1") || !q.Acquire("r1") {
		t.Fatal("expected first two acquires to succeed")
	}
	if q.Acquire("r1") {
		t.Fatal("expected third acquire to fail at cap 2")
	}
	// Other rooms are unaffected.
	if !q.Acquire("r2") {
		t.Fatal("expected separate room to acquire")
	}

	q.Release("r1")
	if !q.Acquire("r1") {
		t.Fatal("expected acquire after release")
	}
}

func TestRoomQuotaUnlimited(t *testing.T) {
	q := NewRoomQuota(0)
	for i := 0; i < 1000; i++ {
		if !q.Acquire("r1") {
			t.Fatalf("acquire %d failed with unlimited quota", i)
		}
	}
}

func TestStaticOrgResolver(t *testing.T) {
	org := &models.Organization{ID: "org-1", Features: map[string]bool{models.FeatureComments: true}}
	r := NewStaticOrgResolver(map[string]*models.Organization{"org-1": org})

	got, err := r.ResolveOrg("org-1")
	if err != nil || got != org {
		t.Fatalf("ResolveOrg = (%v, %v), want org", got, err)
	}

	got, err = r.ResolveOrg("")
	if err != nil || got != nil {
		t.Fatalf("empty org id should resolve to nil, got (%v, %v)", got, err)
	}

	if !org.HasFeature(models.FeatureComments) {
		t.Error("expected comments feature enabled")
	}
	var nilOrg *models.Organization
	if nilOrg.HasFeature(models.FeatureComments) {
		t.Error("nil org must have no features")
	}
}
