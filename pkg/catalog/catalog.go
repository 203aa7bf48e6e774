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

// Package catalog is the content lookup collaborator of the gateway. The
// gateway only reads items; how they get here (M3U lineup, Xtream provider,
// JSON seed file, PostgreSQL) is the operator's choice.
package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/openiptv/stream-gate/pkg/types"
)

// ErrNotFound means no item exists for the requested (type, id) pair.
var ErrNotFound = errors.New("catalog item not found")

// Catalog looks up playable resources by type and id.
type Catalog interface {
	Lookup(ctx context.Context, typ types.ResourceType, id string) (*types.CatalogItem, error)
}

type itemKey struct {
	typ types.ResourceType
	id  string
}

// Memory is an in-memory catalog, used directly for file-backed sources and
// as the test double.
type Memory struct {
	mu    sync.RWMutex
	items map[itemKey]types.CatalogItem
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{items: make(map[itemKey]types.CatalogItem)}
}

// Add inserts or replaces an item.
func (m *Memory) Add(item types.CatalogItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[itemKey{typ: item.Type, id: item.ID}] = item
}

// Len returns the number of items.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Lookup implements Catalog.
func (m *Memory) Lookup(_ context.Context, typ types.ResourceType, id string) (*types.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemKey{typ: typ, id: id}]
	if !ok {
		return nil, ErrNotFound
	}
	out := item
	return &out, nil
}
