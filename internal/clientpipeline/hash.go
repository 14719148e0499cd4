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

package clientpipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/mfinelli/bundlestore/internal/bundlemodel"
)

// HashFile streams f.AbsPath through sha256 without loading it into
// memory, and returns the bundlemodel.File entry ready for preflight
// and create requests.
func HashFile(f DiscoveredFile) (bundlemodel.File, error) {
	file, err := os.Open(f.AbsPath)
	if err != nil {
		return bundlemodel.File{}, fmt.Errorf("open %s: %w", f.AbsPath, err)
	}
	defer file.Close()

	h := sha256.New()
	n, err := io.Copy(h, file)
	if err != nil {
		return bundlemodel.File{}, fmt.Errorf("hash %s: %w", f.AbsPath, err)
	}

	return bundlemodel.File{
		BundlePath: f.BundlePath,
		SizeBytes:  n,
		Hash:       hex.EncodeToString(h.Sum(nil)),
		HashAlgo:   bundlemodel.HashAlgo,
	}, nil
}
