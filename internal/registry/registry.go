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

// Package registry implements the Bundle Registry: manifests and
// summaries persisted as JSON, one file per bundle, written atomically
// via temp-file-then-rename the same way the blob store commits blobs.
package registry

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mfinelli/bundlestore/internal/apierrors"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/merkle"
)

// BlobExists answers the referential-integrity question the registry
// needs without importing the blobstore package's upload machinery.
type BlobExists func(hash string) (bool, error)

// Registry is rooted at Root:
//
//	Root/bundles/manifests/<id>.json
//	Root/bundles/summaries/<id>.json
type Registry struct {
	Root string
}

func (r Registry) manifestsDir() string { return filepath.Join(r.Root, "bundles", "manifests") }
func (r Registry) summariesDir() string { return filepath.Join(r.Root, "bundles", "summaries") }

func (r Registry) manifestPath(id string) string {
	return filepath.Join(r.manifestsDir(), id+".json")
}
func (r Registry) summaryPath(id string) string {
	return filepath.Join(r.summariesDir(), id+".json")
}

// Create validates draft, cross-checks blob existence and the Merkle
// root, assigns an id/created_at where absent, and atomically persists
// the manifest and summary. See the specification's commit algorithm.
func (r Registry) Create(draft bundlemodel.CreateRequest, blobExists BlobExists) (bundlemodel.Manifest, *apierrors.Error) {
	if draft.HashAlgo != "" && draft.HashAlgo != bundlemodel.HashAlgo {
		return bundlemodel.Manifest{}, apierrors.New(apierrors.KindInvalidHash, "only sha256 is supported")
	}
	if verr := bundlemodel.ValidateFiles(draft.Files); verr != nil {
		return bundlemodel.Manifest{}, verr
	}

	var missing []string
	var totalBytes int64
	for _, f := range draft.Files {
		ok, err := blobExists(f.Hash)
		if err != nil {
			return bundlemodel.Manifest{}, apierrors.Wrap(err, "check blob existence")
		}
		if !ok {
			missing = append(missing, f.Hash)
		}
		totalBytes += f.SizeBytes
	}
	if len(missing) > 0 {
		return bundlemodel.Manifest{}, &apierrors.Error{
			Kind:    apierrors.KindMissingBlobs,
			Message: fmt.Sprintf("%d referenced blob(s) have not been uploaded", len(missing)),
			Hashes:  missing,
		}
	}

	computedRoot := merkle.Root(bundlemodel.Leaves(draft.Files))
	if draft.MerkleRoot != "" && draft.MerkleRoot != computedRoot {
		return bundlemodel.Manifest{}, &apierrors.Error{
			Kind:    apierrors.KindMerkleMismatch,
			Message: fmt.Sprintf("client merkle root %s does not match server-computed %s", draft.MerkleRoot, computedRoot),
		}
	}

	id := draft.ID
	if id == "" {
		newID, err := newULID()
		if err != nil {
			return bundlemodel.Manifest{}, apierrors.Wrap(err, "generate bundle id")
		}
		id = newID
	} else if _, err := os.Stat(r.manifestPath(id)); err == nil {
		return bundlemodel.Manifest{}, apierrors.Newf(apierrors.KindIdConflict, "bundle id %s already exists", id)
	} else if !errors.Is(err, os.ErrNotExist) {
		return bundlemodel.Manifest{}, apierrors.Wrap(err, "check existing manifest")
	}

	manifest := bundlemodel.Manifest{
		ID:         id,
		CreatedAt:  time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		HashAlgo:   bundlemodel.HashAlgo,
		FileCount:  len(draft.Files),
		TotalBytes: totalBytes,
		MerkleRoot: computedRoot,
		Files:      draft.Files,
	}

	if err := r.commit(manifest); err != nil {
		return bundlemodel.Manifest{}, err
	}

	return manifest, nil
}

// commit writes the manifest and its summary projection, each via
// temp-file-then-rename. If the summary write fails after the manifest
// rename succeeds, the manifest is unlinked so the invariant "manifest
// and summary either both exist or neither does" always holds.
func (r Registry) commit(manifest bundlemodel.Manifest) *apierrors.Error {
	if err := os.MkdirAll(r.manifestsDir(), 0o755); err != nil {
		return apierrors.Wrap(err, "create manifests directory")
	}
	if err := os.MkdirAll(r.summariesDir(), 0o755); err != nil {
		return apierrors.Wrap(err, "create summaries directory")
	}

	if err := writeJSONAtomic(r.manifestPath(manifest.ID), manifest); err != nil {
		return apierrors.Wrap(err, "write manifest")
	}

	summary := bundlemodel.SummaryOf(manifest)
	if err := writeJSONAtomic(r.summaryPath(manifest.ID), summary); err != nil {
		_ = os.Remove(r.manifestPath(manifest.ID))
		return apierrors.Wrap(err, "write summary")
	}

	return nil
}

// GetManifest reads back the full manifest for id.
func (r Registry) GetManifest(id string) (bundlemodel.Manifest, *apierrors.Error) {
	b, err := os.ReadFile(r.manifestPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bundlemodel.Manifest{}, apierrors.Newf(apierrors.KindNotFound, "no bundle with id %s", id)
		}
		return bundlemodel.Manifest{}, apierrors.Wrap(err, "read manifest")
	}

	var m bundlemodel.Manifest
	if jsonErr := json.Unmarshal(b, &m); jsonErr != nil {
		return bundlemodel.Manifest{}, apierrors.Wrap(jsonErr, "parse manifest")
	}
	return m, nil
}

// ListSummaries enumerates every summary, sorted by created_at
// descending. A malformed entry is skipped, not fatal: one corrupt
// summary file must never take down the whole listing.
func (r Registry) ListSummaries() ([]bundlemodel.Summary, error) {
	entries, err := os.ReadDir(r.summariesDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read summaries directory: %w", err)
	}

	summaries := make([]bundlemodel.Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}

		b, readErr := os.ReadFile(filepath.Join(r.summariesDir(), e.Name()))
		if readErr != nil {
			continue
		}

		var s bundlemodel.Summary
		if jsonErr := json.Unmarshal(b, &s); jsonErr != nil {
			continue
		}
		if s.ID == "" || s.CreatedAt == "" {
			continue
		}

		if s.MerkleRoot == "" {
			// Legacy summary: recover the root from the manifest.
			if m, mErr := r.GetManifest(s.ID); mErr == nil {
				s.MerkleRoot = m.MerkleRoot
				if s.MerkleRoot == "" {
					s.MerkleRoot = merkle.Root(bundlemodel.Leaves(m.Files))
				}
			}
		}

		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})

	return summaries, nil
}

// Paginate slices summaries into the requested page. page is 1-indexed;
// values below 1 default to 1. pageSize is clamped to [1, maxPageSize].
func Paginate(summaries []bundlemodel.Summary, page, pageSize, maxPageSize int) []bundlemodel.Summary {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if maxPageSize > 0 && pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := (page - 1) * pageSize
	if start >= len(summaries) {
		return []bundlemodel.Summary{}
	}
	end := int(math.Min(float64(start+pageSize), float64(len(summaries))))
	return summaries[start:end]
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

func newULID() (string, error) {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}
