// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package auth

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/driftlabs/roomkit/internal/models"
)

// LoadOrgsFile reads a JSON array of organizations and returns a static
// resolver over them. An empty path yields an empty resolver, which
// treats every room as a personal room.
func LoadOrgsFile(path string) (*StaticOrgResolver, error) {
	if path == "" {
		return NewStaticOrgResolver(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read orgs file: %w", err)
	}

	var orgs []*models.Organization
	if err := json.Unmarshal(data, &orgs); err != nil {
		return nil, fmt.Errorf("parse orgs file %s: %w", path, err)
	}

	byID := make(map[string]*models.Organization, len(orgs))
	for _, org := range orgs {
		if org.ID == "" {
			return nil, fmt.Errorf("orgs file %s: organization without id", path)
		}
		if _, dup := byID[org.ID]; dup {
			return nil, fmt.Errorf("orgs file %s: duplicate organization %s", path, org.ID)
		}
		byID[org.ID] = org
	}
	return NewStaticOrgResolver(byID), nil
}
