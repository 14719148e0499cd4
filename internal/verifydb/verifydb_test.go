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

package verifydb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "verify.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLastVerifiedMissing(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := LastVerified(context.Background(), db, "deadbeef")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordAndLastVerified(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, RecordVerification(ctx, db, "abc123", 42))

	v, ok, err := LastVerified(ctx, db, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", v.SHA256)
	require.Equal(t, int64(42), v.SizeBytes)
	require.NotEmpty(t, v.VerifiedAt)
}

func TestRecordVerificationUpserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, RecordVerification(ctx, db, "abc123", 42))
	require.NoError(t, RecordVerification(ctx, db, "abc123", 99))

	v, ok, err := LastVerified(ctx, db, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(99), v.SizeBytes)
}

func TestStaleBeforeMissingIsStale(t *testing.T) {
	db := newTestDB(t)

	stale, err := StaleBefore(context.Background(), db, "nope", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	require.True(t, stale)
}

func TestStaleBeforeRecentIsNotStale(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, RecordVerification(ctx, db, "abc123", 1))

	stale, err := StaleBefore(ctx, db, "abc123", "2000-01-01T00:00:00Z")
	require.NoError(t, err)
	require.False(t, stale)
}
