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

// Package clientpipeline implements bundlectl's create path: walk a list
// of input paths, hash every regular file, diff against the server's
// preflight response, upload what's missing with bounded concurrency,
// then commit the manifest.
package clientpipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFilesFound is returned by Discover when the given input paths
// yield no regular files to bundle.
var ErrNoFilesFound = errors.New("no files found")

// DiscoveredFile is one file found under the base directory, with its
// path relative to that base — the same value that becomes bundle_path
// once hashed.
type DiscoveredFile struct {
	AbsPath    string
	BundlePath string
	SizeBytes  int64
}

// Discover resolves every input path (a file or a directory), walks any
// directories recursively, and returns every regular file found, sorted
// by BundlePath for deterministic output, together with the base
// directory bundle-relative paths were computed against.
//
// The base directory is chosen deterministically, since it determines
// the bundle's identity through the Merkle root: the parent directory of
// the single input when exactly one path is given (so a single
// directory's own name is preserved in its files' bundle paths), or the
// nearest common ancestor of all inputs otherwise. Symlinks are skipped:
// a bundle records file identity, and a symlink's target is not part of
// that identity.
func Discover(inputPaths []string) ([]DiscoveredFile, string, error) {
	if len(inputPaths) == 0 {
		return nil, "", fmt.Errorf("%w: no input paths given", ErrNoFilesFound)
	}

	absPaths := make([]string, len(inputPaths))
	isDir := make([]bool, len(inputPaths))
	for i, p := range inputPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, "", fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, "", fmt.Errorf("stat %s: %w", p, err)
		}
		absPaths[i] = abs
		isDir[i] = info.IsDir()
	}

	var baseDir string
	if len(absPaths) == 1 {
		baseDir = filepath.Dir(absPaths[0])
	} else {
		baseDir = commonAncestor(absPaths)
	}

	var files []DiscoveredFile
	for i, abs := range absPaths {
		if isDir[i] {
			found, err := walkDir(abs, baseDir)
			if err != nil {
				return nil, "", err
			}
			files = append(files, found...)
			continue
		}

		f, err := fileEntry(abs, baseDir)
		if err != nil {
			return nil, "", err
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, "", fmt.Errorf("%w: under %s", ErrNoFilesFound, strings.Join(inputPaths, ", "))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].BundlePath < files[j].BundlePath })
	return files, baseDir, nil
}

// walkDir recursively collects every regular, non-symlink file under dir,
// relative to baseDir.
func walkDir(dir, baseDir string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		f, entryErr := fileEntry(path, baseDir)
		if entryErr != nil {
			return entryErr
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// fileEntry builds a DiscoveredFile for path, relative to baseDir.
func fileEntry(path, baseDir string) (DiscoveredFile, error) {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return DiscoveredFile{}, fmt.Errorf("relativize %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return DiscoveredFile{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return DiscoveredFile{
		AbsPath:    path,
		BundlePath: filepath.ToSlash(rel),
		SizeBytes:  info.Size(),
	}, nil
}

// commonAncestor returns the nearest common ancestor directory of every
// path given, compared component by component.
func commonAncestor(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}

	split := make([][]string, len(paths))
	minLen := -1
	for i, p := range paths {
		parts := strings.Split(filepath.ToSlash(p), "/")
		split[i] = parts
		if minLen == -1 || len(parts) < minLen {
			minLen = len(parts)
		}
	}

	var common []string
	for i := 0; i < minLen; i++ {
		part := split[0][i]
		for _, parts := range split[1:] {
			if parts[i] != part {
				return joinAncestor(common)
			}
		}
		common = append(common, part)
	}

	return joinAncestor(common)
}

// joinAncestor reassembles path components produced by commonAncestor
// back into a filesystem path, preserving a leading root slash.
func joinAncestor(parts []string) string {
	if len(parts) == 0 {
		return string(filepath.Separator)
	}
	joined := strings.Join(parts, "/")
	if joined == "" {
		return string(filepath.Separator)
	}
	return filepath.FromSlash(joined)
}
