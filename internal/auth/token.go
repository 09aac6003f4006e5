// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/driftlabs/roomkit/internal/config"
	"github.com/driftlabs/roomkit/internal/models"
)

// Sentinel errors for join authorization.
var (
	// ErrInvalidToken covers malformed, expired, or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid room token")

	// ErrRoomNotGranted means the token is valid but does not list the room.
	ErrRoomNotGranted = errors.New("room not granted by token")
)

// RoomClaims are the claims of a Roomkit room token. Tokens are issued by
// the account service (out of scope here) and consumed at join time.
type RoomClaims struct {
	DisplayName string   `json:"name"`
	Color       string   `json:"color"`
	Role        string   `json:"role"`
	OrgID       string   `json:"org,omitempty"`
	Rooms       []string `json:"rooms"`
	jwt.RegisteredClaims
}

// Verifier validates room tokens with HMAC-SHA256.
type Verifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

// NewVerifier creates a token verifier from auth configuration.
// The secret must be at least 32 bytes; config validation enforces this
// before we get here, but the constructor re-checks for direct callers.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(cfg.JWTSecret))
	}
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
	}, nil
}

// Grant is the result of a successful token verification for a room.
type Grant struct {
	Identity models.Identity
	Role     models.Role
	OrgID    string
}

// VerifyRoomToken validates the token and checks that it grants roomID.
// Returns ErrInvalidToken for any parse/signature/expiry failure and
// ErrRoomNotGranted when the room is absent from the claim set; callers
// map both onto the unauthorized_token reply reason.
func (v *Verifier) VerifyRoomToken(tokenString, roomID string) (*Grant, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &RoomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	granted := false
	for _, r := range claims.Rooms {
		if r == roomID {
			granted = true
			break
		}
	}
	if !granted {
		return nil, ErrRoomNotGranted
	}

	return &Grant{
		Identity: models.Identity{
			UserID:      claims.Subject,
			DisplayName: claims.DisplayName,
			Color:       claims.Color,
		},
		Role:  role,
		OrgID: claims.OrgID,
	}, nil
}

// IssueRoomToken signs a room token. Production tokens come from the
// account service; this helper exists for tests and local development.
func IssueRoomToken(secret string, identity models.Identity, role models.Role, orgID string, rooms []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := RoomClaims{
		DisplayName: identity.DisplayName,
		Color:       identity.Color,
		Role:        string(role),
		OrgID:       orgID,
		Rooms:       rooms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign room token: %w", err)
	}
	return signed, nil
}
