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
	"fmt"
	"time"
)

// Verification is one recorded rehash of a blob.
type Verification struct {
	SHA256     string
	SizeBytes  int64
	VerifiedAt string
}

// RecordVerification upserts the verification timestamp for sha256.
// Called by `bundle-server verify` immediately after a successful
// rehash, never before — a row in this table is a claim that the bytes
// were read and matched their name at VerifiedAt.
func RecordVerification(ctx context.Context, db *sql.DB, sha256 string, sizeBytes int64) error {
	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")

	_, err := db.ExecContext(ctx, `
		INSERT INTO blob_verifications (sha256, size_bytes, verified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			verified_at = excluded.verified_at
	`, sha256, sizeBytes, now)
	if err != nil {
		return fmt.Errorf("record verification for %s: %w", sha256, err)
	}
	return nil
}

// LastVerified returns the most recent verification for sha256, or
// (Verification{}, false, nil) if none is recorded.
func LastVerified(ctx context.Context, db *sql.DB, sha256 string) (Verification, bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT sha256, size_bytes, verified_at FROM blob_verifications WHERE sha256 = ?`,
		sha256)

	var v Verification
	if err := row.Scan(&v.SHA256, &v.SizeBytes, &v.VerifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return Verification{}, false, nil
		}
		return Verification{}, false, fmt.Errorf("query verification for %s: %w", sha256, err)
	}
	return v, true, nil
}

// StaleBefore reports whether sha256 has no recorded verification, or
// its last verification is older than cutoff (RFC3339, UTC).
func StaleBefore(ctx context.Context, db *sql.DB, sha256, cutoff string) (bool, error) {
	v, ok, err := LastVerified(ctx, db, sha256)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return v.VerifiedAt < cutoff, nil
}
