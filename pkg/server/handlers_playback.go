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
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/relay"
	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// getPlayback resolves a catalog resource into a playable gateway URL. This
// is the only endpoint that mints tokens; everything a player touches
// afterwards carries the token minted here.
func (s *Config) getPlayback(ctx *gin.Context) {
	utils.DebugLog("-> Playback request: %s from %s", ctx.Request.URL.Path, ctx.ClientIP())

	typ, ok := types.ParseResourceType(ctx.Param("type"))
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error:   fmt.Sprintf("unknown resource type %q", ctx.Param("type")),
		})
		return
	}
	id := ctx.Param("id")

	item, err := s.catalog.Lookup(ctx.Request.Context(), typ, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !item.Active {
		ctx.AbortWithStatusJSON(http.StatusForbidden, types.APIResponse{
			Success: false,
			Error:   "resource is not available",
		})
		return
	}

	caller := s.callerIdentity(ctx)
	if item.Premium && !caller.CanPlayPremium() {
		utils.DebugLog("Premium resource %s/%s denied for user %q (role %s)", typ, id, caller.UserID, caller.Role)
		ctx.AbortWithStatusJSON(http.StatusForbidden, types.APIResponse{
			Success: false,
			Error:   "premium subscription required",
		})
		return
	}

	target, err := s.policy.Validate(item.StreamURL, "")
	if err != nil {
		s.reportGuardRejection(item.StreamURL, err)
		respondError(ctx, err)
		return
	}

	raw, err := s.codec.Mint(typ, id, caller, target.Hostname())
	if err != nil {
		utils.ErrorLog("Token minting failed: %v", err)
		respondError(ctx, err)
		return
	}

	playURL := fmt.Sprintf("%s/stream/proxy/%s/%s?token=%s",
		s.BaseURL(), typ, url.PathEscape(id), url.QueryEscape(raw))

	kind := relay.DetectKind(target.URL.Path, "")
	utils.InfoLog("Playback resolved: %s/%s (%s) for user %q", typ, id, kind, caller.UserID)

	ctx.JSON(http.StatusOK, types.PlaybackInfo{
		StreamURL:  playURL,
		StreamType: kind.String(),
		Title:      item.Title,
		Thumbnail:  item.Thumbnail,
	})
}

// reportGuardRejection logs and notifies on upstream policy rejections. The
// raw URL is masked before leaving the process.
func (s *Config) reportGuardRejection(rawURL string, err error) {
	if !isGuardRejection(err) {
		return
	}
	utils.WarnLog("Upstream rejected by policy: %s (%v)", utils.MaskURL(rawURL), err)
	s.notifier.GuardRejected(rawURL, err.Error())
}

var errMissingToken = errors.New("missing stream token")
