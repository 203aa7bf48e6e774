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

// Package discord posts operational gateway events to a Discord channel.
// Entirely optional; a nil Notifier is a no-op, so call sites never branch.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/openiptv/stream-gate/pkg/utils"
)

// Notifier sends gateway events to one Discord channel.
type Notifier struct {
	session   *discordgo.Session
	channelID string
}

// NewNotifier creates a notifier. The session is not opened yet; call Start.
func NewNotifier(token, channelID string) (*Notifier, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuilds
	return &Notifier{session: dg, channelID: channelID}, nil
}

// Start opens the Discord session.
func (n *Notifier) Start() error {
	if n == nil {
		return nil
	}
	if err := n.session.Open(); err != nil {
		return fmt.Errorf("opening Discord session: %w", err)
	}
	utils.InfoLog("Discord notifier connected, channel %s", n.channelID)
	return nil
}

// Stop closes the Discord session.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.session.Close()
}

// StreamStarted reports a successful playback resolution.
func (n *Notifier) StreamStarted(userID, title string) {
	if userID == "" {
		userID = "anonymous"
	}
	n.send(fmt.Sprintf("▶️ **%s** started playback of *%s*", userID, title))
}

// GuardRejected reports a refused upstream URL. These are the events an
// operator actually wants to see: either a misconfigured provider or someone
// probing for SSRF.
func (n *Notifier) GuardRejected(rawURL, reason string) {
	n.send(fmt.Sprintf("🛑 Upstream guard rejected `%s`: %s", utils.MaskURL(rawURL), reason))
}

// send delivers the message without blocking the request path.
func (n *Notifier) send(msg string) {
	if n == nil {
		return
	}
	go func() {
		if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
			utils.WarnLog("Discord notify failed: %v", err)
		}
	}()
}
