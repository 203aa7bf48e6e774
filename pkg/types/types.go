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

package types

import "strings"

// ResourceType identifies the kind of catalog resource a token is scoped to.
type ResourceType string

const (
	ResourceChannel ResourceType = "channel"
	ResourceContent ResourceType = "content"
)

// ParseResourceType maps a path segment to a ResourceType.
func ParseResourceType(s string) (ResourceType, bool) {
	switch ResourceType(strings.ToLower(s)) {
	case ResourceChannel:
		return ResourceChannel, true
	case ResourceContent:
		return ResourceContent, true
	}
	return "", false
}

// CatalogItem is a playable resource as seen by the gateway. The catalog
// collaborator owns the data; the gateway only reads it.
type CatalogItem struct {
	ID        string       `json:"id"`
	Type      ResourceType `json:"type"`
	Title     string       `json:"title"`
	StreamURL string       `json:"streamUrl"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	Premium   bool         `json:"premium"`
	Active    bool         `json:"active"`
}

// StreamKind is the per-request manifest vs binary decision, made once from
// content type and extension and threaded explicitly.
type StreamKind int

const (
	StreamBinary StreamKind = iota
	StreamManifest
)

func (k StreamKind) String() string {
	if k == StreamManifest {
		return "manifest"
	}
	return "binary"
}

// PlaybackInfo is the playback resolution response handed to clients.
type PlaybackInfo struct {
	StreamURL  string `json:"streamUrl"`
	StreamType string `json:"streamType"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// Caller is the identity attached to a playback request. Zero value means an
// anonymous caller with no role.
type Caller struct {
	UserID string
	Role   string
	IP     string
}

// Roles allowed to play premium-flagged resources.
const (
	RolePremium = "premium"
	RoleVIP     = "vip"
	RoleAdmin   = "admin"
	RoleUser    = "user"
)

// CanPlayPremium reports whether the caller's role unlocks premium resources.
func (c Caller) CanPlayPremium() bool {
	switch c.Role {
	case RolePremium, RoleVIP, RoleAdmin:
		return true
	}
	return false
}

// APIResponse is a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
