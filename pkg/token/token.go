/*
 * stream-gate is a token-gated streaming gateway for IPTV aggregation.
 * Copyright (C) 2026  The stream-gate authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package token mints and verifies the short-lived capability tokens that
// scope playback to a single catalog resource. Validity is purely
// cryptographic and time based; nothing is persisted and nothing can be
// revoked before expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openiptv/stream-gate/pkg/types"
)

var (
	// ErrSigningUnconfigured means no signing secret is configured. This is a
	// fatal misconfiguration caught at startup, not a per-request error.
	ErrSigningUnconfigured = errors.New("token signing secret is not configured")
	// ErrTokenInvalid covers bad signatures and malformed tokens.
	ErrTokenInvalid = errors.New("invalid stream token")
	// ErrTokenExpired is surfaced separately from ErrTokenInvalid so callers
	// can tell an expired player session from tampering.
	ErrTokenExpired = errors.New("stream token expired")
	// ErrResourceMismatch means the token was minted for a different resource.
	ErrResourceMismatch = errors.New("stream token does not match requested resource")
	// ErrIPMismatch means IP binding is enabled and the caller's IP changed.
	ErrIPMismatch = errors.New("stream token bound to a different client IP")
)

// Claims are the capability claims carried by a stream token.
type Claims struct {
	ResourceType types.ResourceType `json:"rtype"`
	ResourceID   string             `json:"rid"`
	UserID       string             `json:"uid,omitempty"`
	Role         string             `json:"role,omitempty"`
	UpstreamHost string             `json:"host,omitempty"`
	ClientIP     string             `json:"cip,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies stream tokens. The secret and TTL are process-wide
// configuration; a Codec is safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	bindIP bool
}

// DefaultTTL is used when no token TTL is configured.
const DefaultTTL = 10 * time.Minute

// NewCodec creates a token codec. An empty secret is refused so the gateway
// fails at boot instead of minting unsigned tokens.
func NewCodec(secret string, ttl time.Duration, bindIP bool) (*Codec, error) {
	if secret == "" {
		return nil, ErrSigningUnconfigured
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, bindIP: bindIP}, nil
}

// Mint issues a token scoped to exactly one (resource type, resource id)
// pair. upstreamHost may be empty when the resource's stream URL could not be
// parsed; such tokens carry no host binding.
func (c *Codec) Mint(resourceType types.ResourceType, resourceID string, caller types.Caller, upstreamHost string) (string, error) {
	now := time.Now()

	claims := Claims{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		UserID:       caller.UserID,
		Role:         caller.Role,
		UpstreamHost: upstreamHost,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if c.bindIP {
		claims.ClientIP = caller.IP
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing stream token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the decoded claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// VerifyCaller verifies signature and expiry plus (when enabled) the IP
// binding, without a resource check. The child fetch route uses it: the
// resource scope there is enforced through the token's bound upstream host
// rather than a path pair.
func (c *Codec) VerifyCaller(raw, callerIP string) (*Claims, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return nil, err
	}
	if c.bindIP && claims.ClientIP != "" && claims.ClientIP != callerIP {
		return nil, ErrIPMismatch
	}
	return claims, nil
}

// VerifyFor verifies the token and additionally requires it to match the
// resource the caller is requesting, and (when IP binding is enabled) the
// caller's observed IP. A token minted for item A never plays item B.
func (c *Codec) VerifyFor(raw string, resourceType types.ResourceType, resourceID, callerIP string) (*Claims, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return nil, err
	}

	if claims.ResourceType != resourceType || claims.ResourceID != resourceID {
		return nil, ErrResourceMismatch
	}

	if c.bindIP && claims.ClientIP != "" && claims.ClientIP != callerIP {
		return nil, ErrIPMismatch
	}

	return claims, nil
}
