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
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/catalog"
	"github.com/openiptv/stream-gate/pkg/config"
	"github.com/openiptv/stream-gate/pkg/discord"
	"github.com/openiptv/stream-gate/pkg/guard"
	"github.com/openiptv/stream-gate/pkg/relay"
	"github.com/openiptv/stream-gate/pkg/token"
	"github.com/openiptv/stream-gate/pkg/users"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// Config represents the running gateway: process-wide configuration plus the
// collaborators every request handler shares. All fields are read-only after
// NewServer returns.
type Config struct {
	*config.GatewayConfig

	codec    *token.Codec
	catalog  catalog.Catalog
	roles    users.Resolver
	relay    *relay.Relay
	policy   guard.Policy
	notifier *discord.Notifier

	pgStore       *catalog.Postgres
	catalogSource string
	startedAt     time.Time
}

// NewServer wires the gateway from configuration. Misconfiguration (most
// importantly a missing signing secret) is refused here, at boot, rather
// than surfacing per request.
func NewServer(cfg *config.GatewayConfig) (*Config, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = token.DefaultTTL
	}
	codec, err := token.NewCodec(cfg.SigningSecret.String(), cfg.TokenTTL, cfg.BindClientIP)
	if err != nil {
		return nil, err
	}

	s := &Config{
		GatewayConfig: cfg,
		codec:         codec,
		relay: relay.New(relay.Options{
			ManifestTimeout:   cfg.ManifestTimeout,
			InactivityTimeout: cfg.InactivityTimeout,
			MaxRedirects:      cfg.MaxRedirects,
		}),
		policy: guard.Policy{
			AllowPrivate:       cfg.AllowPrivateUpstreams,
			StaticAllowedHosts: cfg.AllowedHosts,
		},
		startedAt: time.Now(),
	}

	if err := s.initCatalog(); err != nil {
		return nil, err
	}
	s.initRoles()

	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		notifier, err := discord.NewNotifier(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Discord notifier: %w", err)
		}
		s.notifier = notifier
		utils.InfoLog("Bootstrap: Discord notifier configured")
	} else {
		utils.InfoLog("Bootstrap: Discord notifier is DISABLED")
	}

	if cfg.BindClientIP {
		utils.InfoLog("Bootstrap: token IP binding is ON (mobile clients may lose streams on network change)")
	}

	return s, nil
}

// initCatalog selects the catalog source. Exactly one source serves a
// deployment; precedence is PostgreSQL, Xtream, M3U, JSON file.
func (s *Config) initCatalog() error {
	switch {
	case s.PostgresEnabled:
		pg, err := catalog.NewPostgres()
		if err != nil {
			return fmt.Errorf("failed to initialize catalog database: %w", err)
		}
		s.pgStore = pg
		s.catalog = pg
		s.catalogSource = "postgres"

	case s.XtreamBaseURL != "":
		mem, err := catalog.LoadXtream(s.XtreamBaseURL, s.XtreamUser.String(), s.XtreamPassword.String())
		if err != nil {
			return err
		}
		s.catalog = mem
		s.catalogSource = "xtream"

	case s.M3UURL != "":
		mem, err := catalog.LoadM3U(s.M3UURL)
		if err != nil {
			return err
		}
		s.catalog = mem
		s.catalogSource = "m3u"

	case s.JSONCatalogPath != "":
		mem, err := catalog.LoadJSONFile(s.JSONCatalogPath)
		if err != nil {
			return err
		}
		s.catalog = mem
		s.catalogSource = "json"

	default:
		return errors.New("no catalog source configured (need one of: postgres, xtream, m3u-url, catalog-file)")
	}

	return nil
}

func (s *Config) initRoles() {
	if s.LDAPEnabled {
		s.roles = users.NewLDAP(users.LDAPConfig{
			Server:         s.LDAPServer,
			BaseDN:         s.LDAPBaseDN,
			BindDN:         s.LDAPBindDN,
			BindPassword:   s.LDAPBindPassword,
			UserAttribute:  s.LDAPUserAttribute,
			GroupAttribute: s.LDAPGroupAttribute,
			RoleGroups:     s.LDAPRoleGroups,
			DefaultRole:    s.DefaultRole,
		})
		utils.InfoLog("Bootstrap: LDAP role resolution enabled (%s)", s.LDAPServer)
		return
	}
	s.roles = users.NewStatic(s.StaticRoles, s.DefaultRole)
}

// Serve runs the gateway until the listener fails.
func (s *Config) Serve() error {
	utils.InfoLog("[stream-gate] Server is starting...")

	if s.notifier != nil {
		if err := s.notifier.Start(); err != nil {
			return fmt.Errorf("failed to start Discord notifier: %w", err)
		}
		defer s.notifier.Stop()
	}
	if s.pgStore != nil {
		defer s.pgStore.Close()
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Range", "Accept", "X-User-Id"},
		MaxAge:          12 * time.Hour,
	}))

	group := router.Group(s.CustomEndpoint)
	s.routes(group)

	utils.InfoLog("[stream-gate] Server is ready and listening on :%d", s.HostConfig.Port)
	return router.Run(fmt.Sprintf(":%d", s.HostConfig.Port))
}
