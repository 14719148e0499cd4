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

// Package bundlemodel defines the wire and on-disk shapes shared by the
// server and the client: file entries, manifests, summaries, and the
// preflight/create request bodies. Validation is performed here, at the
// boundary; once a value passes ValidateFiles, downstream code treats it as
// trusted.
package bundlemodel

import "github.com/mfinelli/bundlestore/internal/merkle"

// HashAlgo is the only supported hash algorithm.
const HashAlgo = "sha256"

// File is one (path, size, hash) entry within a bundle.
type File struct {
	BundlePath string `json:"bundle_path"`
	SizeBytes  int64  `json:"size_bytes"`
	Hash       string `json:"hash"`
	HashAlgo   string `json:"hash_algo"`
}

// Manifest is the full persisted description of a bundle, files included.
type Manifest struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	HashAlgo   string `json:"hash_algo"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	MerkleRoot string `json:"merkle_root"`
	Files      []File `json:"files"`
}

// Summary is a Manifest projection without the files list, used for
// listings so they stay O(bundle count) rather than O(total files).
type Summary struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	HashAlgo   string `json:"hash_algo"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	MerkleRoot string `json:"merkle_root"`
}

// SummaryOf projects a Manifest down to its Summary.
func SummaryOf(m Manifest) Summary {
	return Summary{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		HashAlgo:   m.HashAlgo,
		FileCount:  m.FileCount,
		TotalBytes: m.TotalBytes,
		MerkleRoot: m.MerkleRoot,
	}
}

// Leaves converts a file list into merkle.Leaf inputs.
func Leaves(files []File) []merkle.Leaf {
	leaves := make([]merkle.Leaf, len(files))
	for i, f := range files {
		leaves[i] = merkle.Leaf{Path: f.BundlePath, Hash: f.Hash}
	}
	return leaves
}

// PreflightRequest is the body of POST /bundles/preflight.
type PreflightRequest struct {
	Files []File `json:"files"`
}

// PreflightResponse answers "which of these hashes are missing?".
type PreflightResponse struct {
	Missing []string `json:"missing"`
}

// CreateRequest is the body of POST /bundles: a manifest draft. ID is
// optional — the server assigns one when absent. CreatedAt is not part
// of the draft; the server always sets it.
type CreateRequest struct {
	ID         string `json:"id,omitempty"`
	HashAlgo   string `json:"hash_algo"`
	MerkleRoot string `json:"merkle_root,omitempty"`
	Files      []File `json:"files"`
}

// CreateResponse is returned on a successful POST /bundles.
type CreateResponse struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	MerkleRoot string `json:"merkle_root"`
}

// ListResponse is the body of GET /bundles.
type ListResponse struct {
	Bundles []Summary `json:"bundles"`
}

// UploadStatusResponse is returned by PUT /blobs/{hash}.
type UploadStatusResponse struct {
	Status string `json:"status"` // "created" or "exists"
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status string `json:"status"`
}
