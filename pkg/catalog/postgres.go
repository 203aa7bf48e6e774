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
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS channels (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	stream_url TEXT NOT NULL,
	thumbnail  TEXT NOT NULL DEFAULT '',
	premium    BOOLEAN NOT NULL DEFAULT FALSE,
	active     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS content (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	stream_url TEXT NOT NULL,
	thumbnail  TEXT NOT NULL DEFAULT '',
	premium    BOOLEAN NOT NULL DEFAULT FALSE,
	active     BOOLEAN NOT NULL DEFAULT TRUE
);
`

// Postgres is a database-backed catalog. Connection parameters come from the
// DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD environment, matching the rest
// of the deployment tooling.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the catalog database and ensures the schema exists.
func NewPostgres() (*Postgres, error) {
	host := utils.GetEnvOrDefault("DB_HOST", "localhost")
	port := utils.GetEnvOrDefault("DB_PORT", "5432")
	dbName := utils.GetEnvOrDefault("DB_NAME", "streamgate")
	user := utils.GetEnvOrDefault("DB_USER", "postgres")
	password := utils.GetEnvOrDefault("DB_PASSWORD", "")

	connStr := fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbName, user, password,
	)

	utils.DebugLog("Connecting to PostgreSQL: host=%s port=%s dbname=%s user=%s", host, port, dbName, user)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		utils.ErrorLog("Failed to connect to database: %v", err)
		db.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	utils.InfoLog("Catalog: PostgreSQL store ready")
	return &Postgres{db: db}, nil
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Lookup implements Catalog.
func (p *Postgres) Lookup(ctx context.Context, typ types.ResourceType, id string) (*types.CatalogItem, error) {
	table := "channels"
	if typ == types.ResourceContent {
		table = "content"
	}

	query := fmt.Sprintf(
		"SELECT id, title, stream_url, thumbnail, premium, active FROM %s WHERE id = $1", table)

	item := types.CatalogItem{Type: typ}
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Title, &item.StreamURL, &item.Thumbnail, &item.Premium, &item.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}

	return &item, nil
}
