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

// Package guard validates URLs the gateway is about to fetch. It is a pure
// check with no network I/O and must run on every fetch attempt, including
// every child URL reached through playlist rewriting.
package guard

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL means the raw URL could not be parsed at all.
	ErrInvalidURL = errors.New("invalid upstream URL")
	// ErrUnsupportedScheme means the URL scheme is not http or https.
	ErrUnsupportedScheme = errors.New("unsupported upstream scheme")
	// ErrForbiddenUpstream means the host is a loopback or private-network
	// literal and the operator override is off.
	ErrForbiddenUpstream = errors.New("forbidden upstream address")
	// ErrHostNotAllowed means an allowlist is in force and the host is not on it.
	ErrHostNotAllowed = errors.New("upstream host not allowed")
)

// privateRanges are the literal address ranges refused by default. This is a
// textual check only; hostnames are not resolved, so DNS rebinding to an
// internal address is not caught here.
var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		privateRanges = append(privateRanges, block)
	}
}

// UpstreamTarget is a parsed, validated upstream URL. It is built fresh for
// every fetch attempt and never trusted across requests.
type UpstreamTarget struct {
	URL *url.URL
}

// Hostname returns the target's hostname without port.
func (t *UpstreamTarget) Hostname() string {
	return t.URL.Hostname()
}

func (t *UpstreamTarget) String() string {
	return t.URL.String()
}

// Policy carries the operator-configured parts of upstream validation.
// The zero value refuses private addresses and applies no static allowlist.
type Policy struct {
	// AllowPrivate disables the loopback/private-network refusal.
	AllowPrivate bool
	// StaticAllowedHosts is the operator allowlist. It is unioned with the
	// token's bound host at validation time.
	StaticAllowedHosts []string
}

// Validate parses rawURL and checks it against the policy. boundHost is the
// upstream host a capability token was minted for; when either boundHost or
// the static allowlist is set, the target host must match one of them.
func (p Policy) Validate(rawURL, boundHost string) (*UpstreamTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrInvalidURL
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return nil, ErrUnsupportedScheme
	}

	host := u.Hostname()
	if host == "" {
		return nil, ErrInvalidURL
	}

	if !p.AllowPrivate && isPrivateHost(host) {
		return nil, ErrForbiddenUpstream
	}

	allowed := p.allowedHosts(boundHost)
	if len(allowed) > 0 && !hostAllowed(host, allowed) {
		return nil, ErrHostNotAllowed
	}

	return &UpstreamTarget{URL: u}, nil
}

// allowedHosts is the union of the static allowlist and the token's bound host.
func (p Policy) allowedHosts(boundHost string) []string {
	if boundHost == "" {
		return p.StaticAllowedHosts
	}
	out := make([]string, 0, len(p.StaticAllowedHosts)+1)
	out = append(out, p.StaticAllowedHosts...)
	out = append(out, boundHost)
	return out
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return true
		}
	}
	return false
}

// isPrivateHost reports whether host is localhost, a *.localhost name, or a
// literal loopback/RFC1918 address.
func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	for _, block := range privateRanges {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
