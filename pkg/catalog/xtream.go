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
	"strings"

	xtreamcodes "github.com/tellytv/go.xtream-codes"

	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// LoadXtream builds a catalog from an Xtream Codes provider: live streams
// become channels, VOD streams become content items. The provider
// credentials stay inside the built stream URLs and never reach clients;
// the gateway hands out tokenized URLs instead.
func LoadXtream(baseURL, username, password string) (*Memory, error) {
	client, err := xtreamcodes.NewClient(username, password, baseURL)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("connecting to Xtream provider: %w", err))
	}

	base := strings.TrimRight(baseURL, "/")
	mem := NewMemory()

	premiumLive := premiumCategories(client.GetLiveCategories())
	premiumVOD := premiumCategories(client.GetVideoOnDemandCategories())

	live, err := client.GetLiveStreams("")
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("listing live streams: %w", err))
	}
	for _, s := range live {
		mem.Add(types.CatalogItem{
			ID:        fmt.Sprintf("%d", int(s.ID)),
			Type:      types.ResourceChannel,
			Title:     s.Name,
			Thumbnail: s.Icon,
			StreamURL: fmt.Sprintf("%s/live/%s/%s/%d.ts", base, username, password, int(s.ID)),
			Premium:   premiumLive[int(s.CategoryID)],
			Active:    true,
		})
	}

	vod, err := client.GetVideoOnDemandStreams("")
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("listing VOD streams: %w", err))
	}
	for _, s := range vod {
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		mem.Add(types.CatalogItem{
			ID:        fmt.Sprintf("%d", int(s.ID)),
			Type:      types.ResourceContent,
			Title:     s.Name,
			Thumbnail: s.Icon,
			StreamURL: fmt.Sprintf("%s/movie/%s/%s/%d.%s", base, username, password, int(s.ID), ext),
			Premium:   premiumVOD[int(s.CategoryID)],
			Active:    true,
		})
	}

	utils.InfoLog("Catalog: loaded %d items from Xtream provider %s", mem.Len(), base)
	return mem, nil
}

// premiumCategories flags categories whose name contains "premium", matching
// the M3U group-title convention. A category listing failure degrades to no
// premium flags rather than failing the whole catalog load.
func premiumCategories(cats []xtreamcodes.Category, err error) map[int]bool {
	if err != nil {
		utils.WarnLog("Catalog: category listing failed, premium flags unavailable: %v", err)
		return nil
	}
	out := make(map[int]bool, len(cats))
	for _, c := range cats {
		if strings.Contains(strings.ToLower(c.Name), "premium") {
			out[int(c.ID)] = true
		}
	}
	return out
}
