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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	uuid "github.com/satori/go.uuid"

	"github.com/openiptv/stream-gate/pkg/guard"
	"github.com/openiptv/stream-gate/pkg/relay"
	"github.com/openiptv/stream-gate/pkg/rewrite"
	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// proxyStream relays the top-level stream of a catalog resource. The token
// must match the resource in the path; the upstream URL always comes from
// the catalog, never from the client.
func (s *Config) proxyStream(ctx *gin.Context) {
	typ, ok := types.ParseResourceType(ctx.Param("type"))
	if !ok {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	id := ctx.Param("id")

	raw := ctx.Query("token")
	if raw == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{
			Success: false,
			Error:   errMissingToken.Error(),
		})
		return
	}

	claims, err := s.codec.VerifyFor(raw, typ, id, ctx.ClientIP())
	if err != nil {
		utils.DebugLog("Token rejected for %s/%s from %s: %v", typ, id, ctx.ClientIP(), err)
		respondError(ctx, err)
		return
	}

	item, err := s.catalog.Lookup(ctx.Request.Context(), typ, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !item.Active {
		ctx.AbortWithStatus(http.StatusForbidden)
		return
	}
	// The premium flag can change after the token was minted, so the role
	// baked into the token is checked again here.
	if item.Premium && !(types.Caller{Role: claims.Role}).CanPlayPremium() {
		ctx.AbortWithStatusJSON(http.StatusForbidden, types.APIResponse{
			Success: false,
			Error:   "premium subscription required",
		})
		return
	}

	target, err := s.policy.Validate(item.StreamURL, claims.UpstreamHost)
	if err != nil {
		s.reportGuardRejection(item.StreamURL, err)
		respondError(ctx, err)
		return
	}

	s.notifier.StreamStarted(claims.UserID, item.Title)
	s.serveUpstream(ctx, target, raw)
}

// fetchChild relays a manifest child (segment, key, or nested playlist). The
// url parameter is attacker-reachable input, so it passes the full guard with
// the token's bound upstream host added to the allowlist.
func (s *Config) fetchChild(ctx *gin.Context) {
	raw := ctx.Query("token")
	if raw == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{
			Success: false,
			Error:   errMissingToken.Error(),
		})
		return
	}
	rawURL := ctx.Query("url")
	if rawURL == "" {
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}

	claims, err := s.codec.VerifyCaller(raw, ctx.ClientIP())
	if err != nil {
		utils.DebugLog("Child fetch token rejected from %s: %v", ctx.ClientIP(), err)
		respondError(ctx, err)
		return
	}

	target, err := s.policy.Validate(rawURL, claims.UpstreamHost)
	if err != nil {
		s.reportGuardRejection(rawURL, err)
		respondError(ctx, err)
		return
	}

	s.serveUpstream(ctx, target, raw)
}

// serveUpstream opens the validated target and relays it to the client.
// Manifests are buffered, rewritten and re-served; everything else streams
// through chunk by chunk. The upstream context is derived from the client
// request so a departed client tears the upstream down.
func (s *Config) serveUpstream(ctx *gin.Context, target *guard.UpstreamTarget, rawToken string) {
	sessionID := uuid.NewV4().String()[:8]

	var upstreamCtx context.Context
	var cancel context.CancelFunc
	if relay.DetectKind(target.URL.Path, "") == types.StreamManifest {
		upstreamCtx, cancel = context.WithTimeout(ctx.Request.Context(), s.relay.ManifestTimeout())
	} else {
		upstreamCtx, cancel = context.WithCancel(ctx.Request.Context())
	}
	defer cancel()

	up, err := s.relay.Open(upstreamCtx, target, ctx.GetHeader("Range"))
	if err != nil {
		if errors.Is(err, relay.ErrClientGone) {
			utils.DebugLog("[%s] Client left before upstream connect", sessionID)
			return
		}
		utils.ErrorLog("[%s] Upstream connect failed for %s: %v", sessionID, utils.MaskURL(target.String()), err)
		ctx.AbortWithStatus(http.StatusBadGateway)
		return
	}
	defer up.Close()

	status := up.Resp.StatusCode
	utils.DebugLog("[%s] Upstream %s answered %d (%s)", sessionID, target.Hostname(), status, up.Kind)

	// Upstream errors pass through untouched, no rewriting on error bodies.
	if status >= 400 {
		relay.CopyHeaders(ctx.Writer.Header(), up.Resp.Header)
		ctx.Status(status)
		if err := s.relay.Pipe(ctx.Request.Context(), ctx.Writer, up.Resp.Body, cancel); err != nil && !errors.Is(err, relay.ErrClientGone) {
			utils.DebugLog("[%s] Error body relay ended: %v", sessionID, err)
		}
		return
	}

	if up.Kind == types.StreamManifest {
		// Content-type detection misses the pre-fetch deadline, so the
		// buffering read gets its own wall-clock bound here.
		if _, ok := upstreamCtx.Deadline(); !ok {
			watchdog := time.AfterFunc(s.relay.ManifestTimeout(), cancel)
			defer watchdog.Stop()
		}
		s.serveManifest(ctx, up, rawToken, sessionID, status)
		return
	}

	relay.CopyHeaders(ctx.Writer.Header(), up.Resp.Header)
	ctx.Status(status)

	err = s.relay.Pipe(ctx.Request.Context(), ctx.Writer, up.Resp.Body, cancel)
	switch {
	case err == nil:
		utils.DebugLog("[%s] Stream completed", sessionID)
	case errors.Is(err, relay.ErrClientGone):
		utils.DebugLog("[%s] Client disconnected, upstream torn down", sessionID)
	case errors.Is(err, relay.ErrStalled):
		utils.WarnLog("[%s] Upstream %s stalled, stream aborted", sessionID, target.Hostname())
	default:
		utils.ErrorLog("[%s] Stream relay failed: %v", sessionID, err)
	}
}

// serveManifest buffers a playlist, rewrites every child reference through
// the gateway and serves the result. Child URLs resolve against the final
// post-redirect upstream URL, not the one that was requested.
func (s *Config) serveManifest(ctx *gin.Context, up *relay.Upstream, rawToken, sessionID string, status int) {
	body, err := s.relay.ReadManifest(up)
	if err != nil {
		utils.ErrorLog("[%s] Manifest read failed: %v", sessionID, err)
		ctx.AbortWithStatus(http.StatusBadGateway)
		return
	}

	rewritten := rewrite.Manifest(body, up.FinalURL, s.BaseURL(), rawToken)

	ctx.Header("Cache-Control", "no-store")
	ctx.Data(status, "application/vnd.apple.mpegurl", []byte(rewritten))
	utils.DebugLog("[%s] Manifest served, %d bytes after rewrite", sessionID, len(rewritten))
}
