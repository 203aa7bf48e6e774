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

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CredentialString is a string holding a secret. It only ever reaches logs
// through explicit masking.
type CredentialString string

// String explicit cast to string
func (s CredentialString) String() string {
	return string(s)
}

// PathEscape escapes the credential for use inside a URL path segment.
func (s CredentialString) PathEscape() string {
	return url.PathEscape(string(s))
}

// HostConfiguration represents the host configuration
type HostConfiguration struct {
	Hostname string
	Port     int
}

// GatewayConfig is the process-wide gateway configuration. It is read-only
// after startup; request handlers share it without locks.
type GatewayConfig struct {
	HostConfig     *HostConfiguration
	AdvertisedPort int
	HTTPS          bool
	CustomEndpoint string

	// Capability tokens
	SigningSecret CredentialString
	TokenTTL      time.Duration
	BindClientIP  bool

	// Upstream fetch policy
	ManifestTimeout       time.Duration
	InactivityTimeout     time.Duration
	MaxRedirects          int
	AllowPrivateUpstreams bool
	AllowedHosts          []string

	// Catalog sources
	M3UURL          string
	JSONCatalogPath string
	XtreamBaseURL   string
	XtreamUser      CredentialString
	XtreamPassword  CredentialString
	PostgresEnabled bool

	// Role resolution
	DefaultRole string
	StaticRoles map[string]string

	LDAPEnabled        bool
	LDAPServer         string
	LDAPBaseDN         string
	LDAPBindDN         string
	LDAPBindPassword   string
	LDAPUserAttribute  string
	LDAPGroupAttribute string
	LDAPRoleGroups     map[string]string

	// Notifications
	DiscordToken     string
	DiscordChannelID string
}

// BaseURL returns the externally visible base URL of the gateway, including
// the optional custom endpoint prefix. Playback and rewritten child URLs are
// built from it.
func (c *GatewayConfig) BaseURL() string {
	protocol := "http"
	if c.HTTPS {
		protocol = "https"
	}

	customEnd := strings.Trim(c.CustomEndpoint, "/")
	if customEnd != "" {
		customEnd = "/" + customEnd
	}

	return fmt.Sprintf("%s://%s:%d%s", protocol, c.HostConfig.Hostname, c.AdvertisedPort, customEnd)
}
