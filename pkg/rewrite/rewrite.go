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

// Package rewrite turns HLS manifest text into a gateway-routed manifest:
// every segment, nested playlist and encryption key URI is replaced with a
// gateway fetch URL carrying the caller's token. It is a pure text transform;
// none of the rewritten URLs are fetched or validated here. Validation
// happens when each rewritten URL is requested.
package rewrite

import (
	"net/url"
	"strings"
)

// FetchPath is the gateway route rewritten URIs point back at.
const FetchPath = "/stream/fetch"

// keyDirectives are the manifest tags whose quoted URI attribute carries an
// encryption key location.
var keyDirectives = []string{"#EXT-X-KEY", "#EXT-X-SESSION-KEY"}

// Manifest rewrites manifestText fetched from manifestURL. manifestURL must
// be the final URL after redirects, so relative URIs resolve against the host
// that actually served the manifest. Lines that fail to resolve are emitted
// unchanged; a malformed URI should degrade, not break playback.
func Manifest(manifestText string, manifestURL *url.URL, gatewayBase, token string) string {
	lines := strings.Split(manifestText, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if isKeyDirective(trimmed) {
				lines[i] = rewriteKeyDirective(line, manifestURL, gatewayBase, token)
			}
			continue
		}

		resolved, ok := resolve(manifestURL, trimmed)
		if !ok {
			continue
		}
		lines[i] = FetchURL(gatewayBase, token, resolved)
	}

	return strings.Join(lines, "\n")
}

// FetchURL builds the gateway fetch URL for one absolute upstream target.
func FetchURL(gatewayBase, token, target string) string {
	return gatewayBase + FetchPath +
		"?token=" + url.QueryEscape(token) +
		"&url=" + url.QueryEscape(target)
}

func isKeyDirective(trimmed string) bool {
	for _, tag := range keyDirectives {
		if strings.HasPrefix(trimmed, tag+":") || trimmed == tag {
			return true
		}
	}
	return false
}

// rewriteKeyDirective replaces only the quoted URI attribute value of a key
// directive, leaving every other attribute untouched.
func rewriteKeyDirective(line string, manifestURL *url.URL, gatewayBase, token string) string {
	const marker = `URI="`

	start := strings.Index(line, marker)
	if start < 0 {
		return line
	}
	valueStart := start + len(marker)

	end := strings.Index(line[valueStart:], `"`)
	if end < 0 {
		return line
	}
	valueEnd := valueStart + end

	resolved, ok := resolve(manifestURL, line[valueStart:valueEnd])
	if !ok {
		return line
	}

	return line[:valueStart] + FetchURL(gatewayBase, token, resolved) + line[valueEnd:]
}

// resolve returns the absolute form of ref relative to base.
func resolve(base *url.URL, ref string) (string, bool) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(refURL).String(), true
}
