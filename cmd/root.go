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

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openiptv/stream-gate/pkg/config"
	"github.com/openiptv/stream-gate/pkg/server"
	"github.com/openiptv/stream-gate/pkg/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stream-gate",
	Short: "Token-gated streaming gateway for IPTV catalogs",
	Long: `stream-gate sits between media players and upstream IPTV providers.
It resolves catalog resources into short-lived, signed playback URLs, then
relays the streams through itself so provider credentials and addresses
never reach clients.

It supports:
- M3U playlists, Xtream Codes providers, JSON files and PostgreSQL as catalog sources
- HLS manifest rewriting so every segment and key fetch stays token-gated
- SSRF-guarded upstream fetching with per-token host scoping
- LDAP or static role resolution for premium content gating`,

	Run: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug-logging") {
			utils.Config.DebugLoggingEnabled = true
			utils.Config.LogLevel = utils.LevelDebug
		}

		conf := &config.GatewayConfig{
			HostConfig: &config.HostConfiguration{
				Hostname: viper.GetString("hostname"),
				Port:     viper.GetInt("port"),
			},
			AdvertisedPort: viper.GetInt("advertised-port"),
			HTTPS:          viper.GetBool("https"),
			CustomEndpoint: viper.GetString("custom-endpoint"),

			SigningSecret: config.CredentialString(viper.GetString("signing-secret")),
			TokenTTL:      viper.GetDuration("token-ttl"),
			BindClientIP:  viper.GetBool("bind-client-ip"),

			ManifestTimeout:       viper.GetDuration("manifest-timeout"),
			InactivityTimeout:     viper.GetDuration("inactivity-timeout"),
			MaxRedirects:          viper.GetInt("max-redirects"),
			AllowPrivateUpstreams: viper.GetBool("allow-private-upstreams"),
			AllowedHosts:          viper.GetStringSlice("allowed-hosts"),

			M3UURL:          viper.GetString("m3u-url"),
			JSONCatalogPath: viper.GetString("catalog-file"),
			XtreamBaseURL:   viper.GetString("xtream-base-url"),
			XtreamUser:      config.CredentialString(viper.GetString("xtream-user")),
			XtreamPassword:  config.CredentialString(viper.GetString("xtream-password")),
			PostgresEnabled: viper.GetBool("postgres"),

			DefaultRole: viper.GetString("default-role"),
			StaticRoles: viper.GetStringMapString("static-roles"),

			LDAPEnabled:        viper.GetBool("ldap-enabled"),
			LDAPServer:         viper.GetString("ldap-server"),
			LDAPBaseDN:         viper.GetString("ldap-base-dn"),
			LDAPBindDN:         viper.GetString("ldap-bind-dn"),
			LDAPBindPassword:   viper.GetString("ldap-bind-password"),
			LDAPUserAttribute:  viper.GetString("ldap-user-attribute"),
			LDAPGroupAttribute: viper.GetString("ldap-group-attribute"),
			LDAPRoleGroups:     viper.GetStringMapString("ldap-role-groups"),

			DiscordToken:     viper.GetString("discord-token"),
			DiscordChannelID: viper.GetString("discord-channel-id"),
		}

		// Use port if advertised port is not specified
		if conf.AdvertisedPort == 0 {
			conf.AdvertisedPort = conf.HostConfig.Port
		}
		if conf.HostConfig.Hostname == "" {
			conf.HostConfig.Hostname = "localhost"
		}

		gateway, err := server.NewServer(conf)
		if err != nil {
			log.Fatal(err)
		}

		if err := gateway.Serve(); err != nil {
			log.Fatal(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.stream-gate.yaml)")

	// Listener and URL generation flags
	rootCmd.Flags().Int("port", 8080, "Listening port")
	rootCmd.Flags().Int("advertised-port", 0, "Port to use in generated URLs (for reverse proxy)")
	rootCmd.Flags().String("hostname", "", "Hostname to use in generated URLs")
	rootCmd.Flags().BoolP("https", "", false, "Use HTTPS for generated URLs")
	rootCmd.Flags().String("custom-endpoint", "", "Custom endpoint path prefix")
	rootCmd.Flags().Bool("debug-logging", false, "Enable debug logging")

	// Token flags
	rootCmd.Flags().String("signing-secret", "", "Secret used to sign stream tokens (required)")
	rootCmd.Flags().Duration("token-ttl", 10*time.Minute, "Stream token lifetime")
	rootCmd.Flags().Bool("bind-client-ip", false, "Bind stream tokens to the requesting client IP")

	// Upstream fetch flags
	rootCmd.Flags().Duration("manifest-timeout", 15*time.Second, "Wall-clock limit for manifest fetches")
	rootCmd.Flags().Duration("inactivity-timeout", 60*time.Second, "Allowed idle gap on binary streams")
	rootCmd.Flags().Int("max-redirects", 10, "Maximum upstream redirect hops")
	rootCmd.Flags().Bool("allow-private-upstreams", false, "Allow upstreams on loopback and RFC1918 addresses")
	rootCmd.Flags().StringSlice("allowed-hosts", nil, "Restrict upstreams to these hosts (empty allows any public host)")

	// Catalog source flags
	rootCmd.Flags().StringP("m3u-url", "u", "", "M3U playlist URL or local path")
	rootCmd.Flags().String("catalog-file", "", "JSON catalog file path")
	rootCmd.Flags().String("xtream-base-url", "", "Xtream API base URL")
	rootCmd.Flags().String("xtream-user", "", "Xtream API username")
	rootCmd.Flags().String("xtream-password", "", "Xtream API password")
	rootCmd.Flags().Bool("postgres", false, "Use PostgreSQL as the catalog source (DB_* environment variables)")

	// Role resolution flags
	rootCmd.Flags().String("default-role", "user", "Role assigned when no resolver matches")
	rootCmd.Flags().StringToString("static-roles", nil, "Static user-to-role map, e.g. alice=premium,bob=user")

	// LDAP role resolution flags
	rootCmd.Flags().Bool("ldap-enabled", false, "Resolve user roles from LDAP group membership")
	rootCmd.Flags().String("ldap-server", "", "LDAP server URL")
	rootCmd.Flags().String("ldap-base-dn", "", "LDAP base DN")
	rootCmd.Flags().String("ldap-bind-dn", "", "LDAP bind DN")
	rootCmd.Flags().String("ldap-bind-password", "", "LDAP bind password")
	rootCmd.Flags().String("ldap-user-attribute", "uid", "LDAP username attribute")
	rootCmd.Flags().String("ldap-group-attribute", "memberOf", "LDAP group attribute")
	rootCmd.Flags().StringToString("ldap-role-groups", nil, "Role-to-group map, e.g. premium=cn=iptv-premium")

	// Notification flags
	rootCmd.Flags().String("discord-token", "", "Discord bot token for operator notifications")
	rootCmd.Flags().String("discord-channel-id", "", "Discord channel receiving notifications")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory and current directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".stream-gate")
	}

	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Read environment variables
	viper.AutomaticEnv()

	// Read in config file if found
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
