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

package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfinelli/bundlestore/internal/apierrors"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allExist() BlobExists {
	return func(string) (bool, error) { return true, nil }
}

func validHash(b byte) string { return strings.Repeat(string(b), 64) }

func TestCreateMissingBlobs(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	draft := bundlemodel.CreateRequest{
		Files: []bundlemodel.File{
			{BundlePath: "a.txt", Hash: validHash('a'), HashAlgo: "sha256", SizeBytes: 1},
		},
	}

	_, err := r.Create(draft, func(string) (bool, error) { return false, nil })
	require.NotNil(t, err)
	assert.Equal(t, apierrors.KindMissingBlobs, err.Kind)
	assert.Equal(t, []string{validHash('a')}, err.Hashes)

	// no manifest or summary should have been written
	_, statErr := os.Stat(r.manifestsDir())
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(r.summariesDir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateSuccessAndReferentialClosure(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	files := []bundlemodel.File{
		{BundlePath: "a.txt", Hash: validHash('a'), HashAlgo: "sha256", SizeBytes: 3},
		{BundlePath: "b.txt", Hash: validHash('b'), HashAlgo: "sha256", SizeBytes: 4},
	}
	draft := bundlemodel.CreateRequest{Files: files}

	manifest, err := r.Create(draft, allExist())
	require.Nil(t, err)
	assert.NotEmpty(t, manifest.ID)
	assert.Equal(t, 2, manifest.FileCount)
	assert.Equal(t, int64(7), manifest.TotalBytes)
	assert.Equal(t, merkle.Root(bundlemodel.Leaves(files)), manifest.MerkleRoot)

	got, getErr := r.GetManifest(manifest.ID)
	require.Nil(t, getErr)
	assert.Equal(t, manifest, got)

	summaries, listErr := r.ListSummaries()
	require.NoError(t, listErr)
	require.Len(t, summaries, 1)
	assert.Equal(t, manifest.ID, summaries[0].ID)
	assert.Equal(t, manifest.MerkleRoot, summaries[0].MerkleRoot)
}

func TestCreateMerkleMismatch(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	draft := bundlemodel.CreateRequest{
		MerkleRoot: validHash('f'),
		Files: []bundlemodel.File{
			{BundlePath: "a.txt", Hash: validHash('a'), HashAlgo: "sha256", SizeBytes: 1},
		},
	}

	_, err := r.Create(draft, allExist())
	require.NotNil(t, err)
	assert.Equal(t, apierrors.KindMerkleMismatch, err.Kind)
}

func TestCreateIdConflict(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	draft := bundlemodel.CreateRequest{
		ID: "clientprovided01",
		Files: []bundlemodel.File{
			{BundlePath: "a.txt", Hash: validHash('a'), HashAlgo: "sha256", SizeBytes: 1},
		},
	}

	_, err := r.Create(draft, allExist())
	require.Nil(t, err)

	_, err2 := r.Create(draft, allExist())
	require.NotNil(t, err2)
	assert.Equal(t, apierrors.KindIdConflict, err2.Kind)
}

func TestCreateEmptyBundle(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	manifest, err := r.Create(bundlemodel.CreateRequest{}, allExist())
	require.Nil(t, err)
	assert.Equal(t, 0, manifest.FileCount)
	assert.Equal(t, merkle.Root(nil), manifest.MerkleRoot)
}

func TestListSummariesSkipsCorruption(t *testing.T) {
	t.Parallel()

	r := Registry{Root: t.TempDir()}
	draft := bundlemodel.CreateRequest{
		Files: []bundlemodel.File{
			{BundlePath: "a.txt", Hash: validHash('a'), HashAlgo: "sha256", SizeBytes: 1},
		},
	}
	_, err := r.Create(draft, allExist())
	require.Nil(t, err)

	require.NoError(t, os.MkdirAll(r.summariesDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(r.summariesDir(), "broken.json"), []byte("{"), 0o644))

	summaries, listErr := r.ListSummaries()
	require.NoError(t, listErr)
	assert.Len(t, summaries, 1)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	summaries := make([]bundlemodel.Summary, 5)
	for i := range summaries {
		summaries[i] = bundlemodel.Summary{ID: validHash(byte('0' + i))}
	}

	page1 := Paginate(summaries, 1, 2, 10)
	assert.Len(t, page1, 2)

	page3 := Paginate(summaries, 3, 2, 10)
	assert.Len(t, page3, 1)

	page4 := Paginate(summaries, 4, 2, 10)
	assert.Empty(t, page4)

	capped := Paginate(summaries, 1, 100, 2)
	assert.Len(t, capped, 2)
}
