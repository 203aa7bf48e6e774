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

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesnetherton/m3u"

	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// LoadM3U builds a channel catalog from an M3U lineup (remote URL or local
// path). Track indexes become channel ids; tvg-logo tags become thumbnails;
// a group-title containing "premium" flags the channel premium.
func LoadM3U(source string) (*Memory, error) {
	playlist, err := m3u.Parse(source)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("parsing M3U lineup: %w", err))
	}

	mem := NewMemory()
	for i, track := range playlist.Tracks {
		item := types.CatalogItem{
			ID:        strconv.Itoa(i + 1),
			Type:      types.ResourceChannel,
			Title:     track.Name,
			StreamURL: track.URI,
			Active:    true,
		}

		for _, tag := range track.Tags {
			switch strings.ToLower(tag.Name) {
			case "tvg-logo":
				item.Thumbnail = tag.Value
			case "group-title":
				if strings.Contains(strings.ToLower(tag.Value), "premium") {
					item.Premium = true
				}
			}
		}

		mem.Add(item)
	}

	utils.InfoLog("Catalog: loaded %d channels from M3U lineup %s", mem.Len(), utils.MaskURL(source))
	return mem, nil
}
