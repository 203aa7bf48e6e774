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

package utils

import "net/url"

// MaskString masks sensitive parts of strings for logging.
func MaskString(s string) string {
	if len(s) <= 8 {
		if len(s) <= 0 {
			return "[empty]"
		}
		return s[:1] + "******"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskURL masks token and credential query parameters of a URL for logging.
// Unparseable inputs are masked whole rather than leaked.
func MaskURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return MaskString(urlStr)
	}
	q := u.Query()
	for _, k := range []string{"token", "username", "password"} {
		if v := q.Get(k); v != "" {
			q.Set(k, MaskString(v))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
