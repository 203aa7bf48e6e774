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
	"os"

	"github.com/buger/jsonparser"

	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

// LoadJSONFile builds a catalog from a JSON seed file of the form
//
//	{"channels": [{"id": "...", "title": "...", "streamUrl": "...",
//	               "thumbnail": "...", "premium": false, "active": true}],
//	 "content":  [...]}
//
// Items without an id or stream URL are skipped. Missing "active" defaults
// to true.
func LoadJSONFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(fmt.Errorf("reading catalog file: %w", err))
	}

	mem := NewMemory()
	for key, typ := range map[string]types.ResourceType{
		"channels": types.ResourceChannel,
		"content":  types.ResourceContent,
	} {
		resourceType := typ
		_, err := jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
			item, ok := parseItem(value, resourceType)
			if !ok {
				utils.WarnLog("Catalog: skipping malformed %s entry in %s", resourceType, path)
				return
			}
			mem.Add(item)
		}, key)
		if err != nil && err != jsonparser.KeyPathNotFoundError {
			return nil, utils.PrintErrorAndReturn(fmt.Errorf("parsing catalog file %s: %w", path, err))
		}
	}

	utils.InfoLog("Catalog: loaded %d items from JSON file %s", mem.Len(), path)
	return mem, nil
}

func parseItem(value []byte, typ types.ResourceType) (types.CatalogItem, bool) {
	id, err := jsonparser.GetString(value, "id")
	if err != nil || id == "" {
		return types.CatalogItem{}, false
	}
	streamURL, err := jsonparser.GetString(value, "streamUrl")
	if err != nil || streamURL == "" {
		return types.CatalogItem{}, false
	}

	item := types.CatalogItem{
		ID:        id,
		Type:      typ,
		StreamURL: streamURL,
		Active:    true,
	}

	item.Title, _ = jsonparser.GetString(value, "title")
	item.Thumbnail, _ = jsonparser.GetString(value, "thumbnail")
	item.Premium, _ = jsonparser.GetBoolean(value, "premium")
	if active, err := jsonparser.GetBoolean(value, "active"); err == nil {
		item.Active = active
	}

	return item, true
}
