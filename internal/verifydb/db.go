/*
 * bundle store (bundlestore): content-addressed bundle store
 * Copyright © 2026 Mario Finelli
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
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package verifydb is a small, non-authoritative cache of blob
// verification timestamps, used only by `bundle-server verify` to skip
// rehashing blobs that were checked recently. The blob store and the
// registry's JSON files remain the sole source of truth; losing this
// database loses nothing but re-verification time.
package verifydb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dbPragmas = "?_foreign_keys=ON&_journal_mode=WAL&_synchronous=NORMAL"

// Open opens (and, via Migrate, prepares) the verification cache at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s%s", path, dbPragmas))
	if err != nil {
		return nil, fmt.Errorf("open verification database: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration. Safe to call on every
// startup; goose is idempotent against an up-to-date schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("prepare migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
