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

package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/openiptv/stream-gate/pkg/utils"
)

// LDAPConfig configures directory-based role resolution.
type LDAPConfig struct {
	Server       string
	BaseDN       string
	BindDN       string
	BindPassword string
	// UserAttribute is the attribute matched against the user id (e.g. uid).
	UserAttribute string
	// GroupAttribute is the attribute listing group memberships (e.g. memberOf).
	GroupAttribute string
	// RoleGroups maps role name to a substring matched against group values,
	// e.g. {"admin": "cn=iptv-admins", "premium": "cn=iptv-premium"}.
	RoleGroups map[string]string
	// DefaultRole is returned when no role group matches.
	DefaultRole string
}

// LDAP resolves roles from directory group membership. A fresh connection is
// dialed per lookup; role resolution happens once per playback request, not
// per segment.
type LDAP struct {
	cfg LDAPConfig
}

// NewLDAP creates an LDAP role resolver.
func NewLDAP(cfg LDAPConfig) *LDAP {
	if cfg.UserAttribute == "" {
		cfg.UserAttribute = "uid"
	}
	if cfg.GroupAttribute == "" {
		cfg.GroupAttribute = "memberOf"
	}
	return &LDAP{cfg: cfg}
}

// rolePrecedence orders role group checks so the strongest match wins.
var rolePrecedence = []string{"admin", "vip", "premium", "user"}

// Role implements Resolver.
func (l *LDAP) Role(_ context.Context, userID string) (string, error) {
	utils.DebugLog("LDAP DialURL: %s", l.cfg.Server)
	conn, err := ldap.DialURL(l.cfg.Server)
	if err != nil {
		return "", utils.PrintErrorAndReturn(fmt.Errorf("LDAP dial: %w", err))
	}
	defer conn.Close()

	if l.cfg.BindDN != "" && l.cfg.BindPassword != "" {
		if err := conn.Bind(l.cfg.BindDN, l.cfg.BindPassword); err != nil {
			return "", utils.PrintErrorAndReturn(fmt.Errorf("LDAP service bind: %w", err))
		}
	}

	filter := fmt.Sprintf("(%s=%s)", l.cfg.UserAttribute, ldap.EscapeFilter(userID))
	utils.DebugLog("LDAP search: baseDN=%s, filter=%s", l.cfg.BaseDN, filter)
	searchRequest := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"dn", l.cfg.GroupAttribute},
		nil,
	)
	sr, err := conn.Search(searchRequest)
	if err != nil {
		return "", utils.PrintErrorAndReturn(fmt.Errorf("LDAP search: %w", err))
	}
	if len(sr.Entries) == 0 {
		utils.DebugLog("LDAP search: no entries found for user: %s", userID)
		return l.cfg.DefaultRole, nil
	}

	groups := sr.Entries[0].GetAttributeValues(l.cfg.GroupAttribute)
	for _, role := range rolePrecedence {
		needle, ok := l.cfg.RoleGroups[role]
		if !ok || needle == "" {
			continue
		}
		for _, group := range groups {
			if strings.Contains(strings.ToLower(group), strings.ToLower(needle)) {
				utils.DebugLog("LDAP user %s resolved to role %s via group %s", userID, role, group)
				return role, nil
			}
		}
	}

	return l.cfg.DefaultRole, nil
}
