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

package bundlemodel

import (
	"strings"

	"github.com/mfinelli/bundlestore/internal/apierrors"
)

const hexDigits = "0123456789abcdef"

// ValidateHash checks that hash is exactly 64 lowercase hex characters.
func ValidateHash(hash string) *apierrors.Error {
	if len(hash) != 64 {
		return &apierrors.Error{
			Kind:    apierrors.KindInvalidHash,
			Field:   "hash",
			Message: "sha-256 hash must be exactly 64 characters",
		}
	}
	for _, c := range hash {
		if !strings.ContainsRune(hexDigits, c) {
			return &apierrors.Error{
				Kind:    apierrors.KindInvalidHash,
				Field:   "hash",
				Message: "hash must be lowercase hexadecimal (0-9, a-f)",
			}
		}
	}
	return nil
}

// ValidatePath checks that path is a non-empty, relative, traversal-free
// POSIX path: no leading '/', no empty string, no ".." segment.
func ValidatePath(path string) *apierrors.Error {
	if path == "" {
		return &apierrors.Error{
			Kind:    apierrors.KindInvalidPath,
			Field:   "bundle_path",
			Message: "path cannot be empty",
		}
	}
	if strings.HasPrefix(path, "/") {
		return &apierrors.Error{
			Kind:    apierrors.KindInvalidPath,
			Field:   "bundle_path",
			Message: "path must be relative (no leading '/')",
		}
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return &apierrors.Error{
				Kind:    apierrors.KindInvalidPath,
				Field:   "bundle_path",
				Message: "path cannot contain '..' (directory traversal)",
			}
		}
	}
	return nil
}

// ValidateFiles validates every file entry (path, hash, algo) and checks
// that no two entries share the same bundle_path. It is run both by
// preflight (so a client learns about a malformed path before it starts
// uploading bytes) and by the bundle-commit path.
func ValidateFiles(files []File) *apierrors.Error {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.HashAlgo != "" && f.HashAlgo != HashAlgo {
			return &apierrors.Error{
				Kind:    apierrors.KindInvalidHash,
				Field:   "hash_algo",
				Message: "only sha256 is supported",
			}
		}
		if err := ValidatePath(f.BundlePath); err != nil {
			return err
		}
		if err := ValidateHash(f.Hash); err != nil {
			return err
		}
		if f.SizeBytes < 0 {
			return &apierrors.Error{
				Kind:    apierrors.KindInvalidPath,
				Field:   "size_bytes",
				Message: "size_bytes must be non-negative",
			}
		}
		if _, dup := seen[f.BundlePath]; dup {
			return &apierrors.Error{
				Kind:    apierrors.KindInvalidPath,
				Field:   "bundle_path",
				Message: "duplicate bundle_path: " + f.BundlePath,
			}
		}
		seen[f.BundlePath] = struct{}{}
	}
	return nil
}
