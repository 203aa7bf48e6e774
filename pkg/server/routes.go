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

package server

import (
	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/rewrite"
)

// routes registers the gateway endpoints.
//
//	/stream/:type/:id        playback resolution, mints the capability token
//	/stream/proxy/:type/:id  top-level relay for a catalog resource
//	/stream/fetch            child relay for rewritten manifest entries
//	/status                  internal health endpoint, API-key gated
func (s *Config) routes(r *gin.RouterGroup) {
	r.GET("/stream/:type/:id", s.getPlayback)
	r.GET("/stream/proxy/:type/:id", s.proxyStream)
	r.GET(rewrite.FetchPath, s.fetchChild)

	r.GET("/status", s.apiKeyAuth(), s.getStatus)
}
