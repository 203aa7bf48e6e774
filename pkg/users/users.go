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

// Package users resolves caller roles. Account management lives elsewhere;
// the gateway only needs to know which role a caller holds at mint time.
package users

import "context"

// Resolver maps a user id to a role name.
type Resolver interface {
	Role(ctx context.Context, userID string) (string, error)
}

// Static resolves roles from a fixed map with a default fallback. It backs
// deployments without a directory service and the tests.
type Static struct {
	roles       map[string]string
	defaultRole string
}

// NewStatic creates a static resolver. roles may be nil.
func NewStatic(roles map[string]string, defaultRole string) *Static {
	return &Static{roles: roles, defaultRole: defaultRole}
}

// Role implements Resolver.
func (s *Static) Role(_ context.Context, userID string) (string, error) {
	if role, ok := s.roles[userID]; ok {
		return role, nil
	}
	return s.defaultRole, nil
}
