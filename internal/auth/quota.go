// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package auth

import (
	"sync"

	"github.com/driftlabs/roomkit/internal/models"
)

// QuotaChecker gates room joins on connection capacity.
// Implementations must be safe for concurrent use.
type QuotaChecker interface {
	// Acquire reserves a connection slot for the room. Returns false when
	// the room is at capacity; no slot is held in that case.
	Acquire(roomID string) bool

	// Release frees a previously acquired slot.
	Release(roomID string)
}

// RoomQuota is an in-process QuotaChecker with a flat per-room cap.
// A cap of 0 disables the limit.
type RoomQuota struct {
	cap    int
	mu     sync.Mutex
	counts map[string]int
}

// NewRoomQuota creates a quota checker with the given per-room cap.
func NewRoomQuota(perRoomCap int) *RoomQuota {
	return &RoomQuota{
		cap:    perRoomCap,
		counts: make(map[string]int),
	}
}

// Acquire implements QuotaChecker.
func (q *RoomQuota) Acquire(roomID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap > 0 && q.counts[roomID] >= q.cap {
		return false
	}
	q.counts[roomID]++
	return true
}

// Release implements QuotaChecker.
func (q *RoomQuota) Release(roomID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.counts[roomID] > 0 {
		q.counts[roomID]--
	}
	if q.counts[roomID] == 0 {
		delete(q.counts, roomID)
	}
}

// Count returns the current occupancy of a room.
func (q *RoomQuota) Count(roomID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[roomID]
}

// OrgResolver resolves the organization owning a room, if any.
// The room session protocol treats this as an external collaborator;
// results are cached on the session at join time so feature checks cost
// no extra round trips.
type OrgResolver interface {
	// ResolveOrg returns the organization for an org id, or nil for
	// personal rooms (empty orgID).
	ResolveOrg(orgID string) (*models.Organization, error)
}

// StaticOrgResolver serves organizations from a fixed map. Used for
// single-tenant deployments and tests; multi-tenant deployments plug in
// a resolver backed by the account service.
type StaticOrgResolver struct {
	orgs map[string]*models.Organization
}

// NewStaticOrgResolver creates a resolver over a fixed org set.
func NewStaticOrgResolver(orgs map[string]*models.Organization) *StaticOrgResolver {
	if orgs == nil {
		orgs = make(map[string]*models.Organization)
	}
	return &StaticOrgResolver{orgs: orgs}
}

// ResolveOrg implements OrgResolver.
func (r *StaticOrgResolver) ResolveOrg(orgID string) (*models.Organization, error) {
	if orgID == "" {
		return nil, nil
	}
	return r.orgs[orgID], nil
}
