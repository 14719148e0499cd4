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
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/merkle"
)

// Uploader is the subset of apiclient.Client the pipeline needs, so
// tests can substitute a fake without standing up an HTTP server.
type Uploader interface {
	Preflight(ctx context.Context, files []bundlemodel.File) ([]string, error)
	UploadBlob(ctx context.Context, hash string, sizeBytes int64, body io.Reader) (bool, error)
	CreateBundle(ctx context.Context, draft bundlemodel.CreateRequest) (bundlemodel.CreateResponse, error)
}

// Progress reports pipeline events. OnHashed is called sequentially from
// BuildPlan's goroutine; OnUploaded may be called from multiple upload
// goroutines concurrently, so it must be safe for concurrent use.
type Progress struct {
	OnHashed   func(f bundlemodel.File)
	OnUploaded func(hash string, created bool)
}

// Plan is the result of discovery and hashing: every file in the
// bundle, with its bundle_path, size and hash already computed.
type Plan struct {
	BaseDir string
	Files   []bundlemodel.File
	byHash  map[string]string // hash -> absolute path, for Upload
}

// BuildPlan discovers and hashes every file reachable from inputPaths
// (each a file or a directory), computing bundle-relative paths against
// the base directory Discover selects for them.
func BuildPlan(inputPaths []string, progress Progress) (Plan, error) {
	discovered, baseDir, err := Discover(inputPaths)
	if err != nil {
		return Plan{}, fmt.Errorf("discover files: %w", err)
	}

	files := make([]bundlemodel.File, 0, len(discovered))
	byHash := make(map[string]string, len(discovered))
	for _, d := range discovered {
		f, hashErr := HashFile(d)
		if hashErr != nil {
			return Plan{}, hashErr
		}
		files = append(files, f)
		byHash[f.Hash] = d.AbsPath
		if progress.OnHashed != nil {
			progress.OnHashed(f)
		}
	}

	return Plan{BaseDir: baseDir, Files: files, byHash: byHash}, nil
}

// MerkleRoot computes the plan's Merkle root for a --dry-run preview or
// for client-side cross-checking against the server's response.
func (p Plan) MerkleRoot() string {
	return merkle.Root(bundlemodel.Leaves(p.Files))
}

// Upload preflights the plan, uploads every missing blob with up to
// workers concurrent uploads, then commits the bundle. If id is
// non-empty it is passed through as the client-supplied bundle id.
func Upload(ctx context.Context, client Uploader, plan Plan, id string, workers int, progress Progress) (bundlemodel.CreateResponse, error) {
	missing, err := client.Preflight(ctx, plan.Files)
	if err != nil {
		return bundlemodel.CreateResponse{}, fmt.Errorf("preflight: %w", err)
	}

	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	sizeByHash := make(map[string]int64, len(plan.Files))
	for _, f := range plan.Files {
		sizeByHash[f.Hash] = f.SizeBytes
	}

	for _, hash := range missing {
		hash := hash
		path, ok := plan.byHash[hash]
		if !ok {
			continue
		}
		size := sizeByHash[hash]

		g.Go(func() error {
			file, openErr := os.Open(path)
			if openErr != nil {
				return fmt.Errorf("open %s for upload: %w", path, openErr)
			}
			defer file.Close()

			created, uploadErr := client.UploadBlob(gctx, hash, size, file)
			if uploadErr != nil {
				return fmt.Errorf("upload %s: %w", hash, uploadErr)
			}
			if progress.OnUploaded != nil {
				progress.OnUploaded(hash, created)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return bundlemodel.CreateResponse{}, err
	}

	draft := bundlemodel.CreateRequest{
		ID:         id,
		HashAlgo:   bundlemodel.HashAlgo,
		MerkleRoot: plan.MerkleRoot(),
		Files:      plan.Files,
	}

	resp, err := client.CreateBundle(ctx, draft)
	if err != nil {
		return bundlemodel.CreateResponse{}, fmt.Errorf("create bundle: %w", err)
	}

	if resp.MerkleRoot != draft.MerkleRoot {
		return bundlemodel.CreateResponse{}, fmt.Errorf(
			"merkle root mismatch: client computed %s, server returned %s (client/server algorithm disagreement or corruption)",
			draft.MerkleRoot, resp.MerkleRoot)
	}

	return resp, nil
}
