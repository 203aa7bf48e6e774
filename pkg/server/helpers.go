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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/catalog"
	"github.com/openiptv/stream-gate/pkg/guard"
	"github.com/openiptv/stream-gate/pkg/token"
	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// callerIdentity builds the caller for a playback request. The user id comes
// from the "user" query parameter or the X-User-Id header (an authenticating
// reverse proxy sets the latter); the role is resolved once here, never on
// segment fetches.
func (s *Config) callerIdentity(ctx *gin.Context) types.Caller {
	userID := ctx.Query("user")
	if userID == "" {
		userID = ctx.GetHeader("X-User-Id")
	}

	caller := types.Caller{
		UserID: userID,
		Role:   s.DefaultRole,
		IP:     ctx.ClientIP(),
	}

	if userID == "" {
		return caller
	}

	role, err := s.roles.Role(ctx.Request.Context(), userID)
	if err != nil {
		utils.WarnLog("Role resolution failed for %s, using default: %v", userID, err)
		return caller
	}
	caller.Role = role
	return caller
}

// statusForError maps collaborator errors to HTTP status codes. Every token
// failure is 401, including scope mismatches: the player's fix is always the
// same, request a fresh playback URL. Guard rejections on well-formed URLs
// are 403 so probing callers learn nothing about the address space.
func statusForError(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenInvalid),
		errors.Is(err, token.ErrResourceMismatch),
		errors.Is(err, token.ErrIPMismatch):
		return http.StatusUnauthorized

	case errors.Is(err, guard.ErrInvalidURL),
		errors.Is(err, guard.ErrUnsupportedScheme):
		return http.StatusBadRequest

	case errors.Is(err, guard.ErrForbiddenUpstream),
		errors.Is(err, guard.ErrHostNotAllowed):
		return http.StatusForbidden
	}

	return http.StatusInternalServerError
}

func respondError(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(statusForError(err), types.APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// isGuardRejection reports whether err is a policy rejection worth notifying
// about, as opposed to a malformed request.
func isGuardRejection(err error) bool {
	return errors.Is(err, guard.ErrForbiddenUpstream) || errors.Is(err, guard.ErrHostNotAllowed)
}
