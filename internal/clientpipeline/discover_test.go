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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverSingleDirectoryPreservesName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "payload")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "two.txt"), []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	files, baseDir, err := Discover([]string{dir})
	require.NoError(t, err)
	require.Equal(t, root, baseDir)
	require.Len(t, files, 2)
	require.Equal(t, "payload/a.txt", files[0].BundlePath)
	require.Equal(t, "payload/b/two.txt", files[1].BundlePath)
	require.Equal(t, int64(1), files[0].SizeBytes)
}

func TestDiscoverSingleFileUsesParentAsBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	files, baseDir, err := Discover([]string{filepath.Join(dir, "a.txt")})
	require.NoError(t, err)
	require.Equal(t, dir, baseDir)
	require.Len(t, files, 1)
	require.Equal(t, "a.txt", files[0].BundlePath)
}

func TestDiscoverSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.txt")))

	files, _, err := Discover([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, filepath.Base(dir)+"/real.txt", files[0].BundlePath)
}

func TestDiscoverMultiplePathsUseCommonAncestor(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "one"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "two"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "one", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two", "b.txt"), []byte("b"), 0o644))

	files, baseDir, err := Discover([]string{
		filepath.Join(root, "one"),
		filepath.Join(root, "two"),
	})
	require.NoError(t, err)
	require.Equal(t, root, baseDir)
	require.Len(t, files, 2)
	require.Equal(t, "one/a.txt", files[0].BundlePath)
	require.Equal(t, "two/b.txt", files[1].BundlePath)
}

func TestDiscoverNoFilesFound(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Discover([]string{dir})
	require.ErrorIs(t, err, ErrNoFilesFound)
}
