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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/catalog"
	"github.com/openiptv/stream-gate/pkg/types"
)

type statusReport struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	TokenTTL      string `json:"tokenTtl"`
	IPBinding     bool   `json:"ipBinding"`
	CatalogSource string `json:"catalogSource,omitempty"`
	CatalogItems  int    `json:"catalogItems,omitempty"`
}

// getStatus reports gateway health for internal tooling. Gated behind the
// internal API key, never exposed to players.
func (s *Config) getStatus(ctx *gin.Context) {
	report := statusReport{
		Status:        "ok",
		Uptime:        time.Since(s.startedAt).Round(time.Second).String(),
		TokenTTL:      s.TokenTTL.String(),
		IPBinding:     s.BindClientIP,
		CatalogSource: s.catalogSource,
	}
	if mem, ok := s.catalog.(*catalog.Memory); ok {
		report.CatalogItems = mem.Len()
	}

	ctx.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    report,
	})
}
