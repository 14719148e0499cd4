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

package server

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	kzip "github.com/klauspost/compress/flate"

	"github.com/mfinelli/bundlestore/internal/apierrors"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/registry"
)

// handlePreflight implements POST /bundles/preflight: given a candidate
// file list, report which hashes the caller still needs to upload. It
// never touches the registry — only the blob store's existence index.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var req bundlemodel.PreflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, apierrors.New(apierrors.KindInvalidPath, "malformed request body"))
		return
	}
	if verr := bundlemodel.ValidateFiles(req.Files); verr != nil {
		s.writeAPIError(w, verr)
		return
	}

	seen := make(map[string]struct{})
	var missing []string
	for _, f := range req.Files {
		if _, dup := seen[f.Hash]; dup {
			continue
		}
		seen[f.Hash] = struct{}{}

		ok, err := s.Blobs.Exists(f.Hash)
		if err != nil {
			s.writeAPIError(w, apierrors.Wrap(err, "check blob existence"))
			return
		}
		if !ok {
			missing = append(missing, f.Hash)
		}
	}

	writeJSON(w, http.StatusOK, bundlemodel.PreflightResponse{Missing: missing})
}

// handleCreateBundle implements POST /bundles: commit a manifest once
// every referenced blob is confirmed present and the Merkle root (if the
// caller supplied one) matches the server's own computation.
func (s *Server) handleCreateBundle(w http.ResponseWriter, r *http.Request) {
	var req bundlemodel.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, apierrors.New(apierrors.KindInvalidPath, "malformed request body"))
		return
	}

	manifest, err := s.Registry.Create(req, s.Blobs.Exists)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bundlemodel.CreateResponse{
		ID:         manifest.ID,
		CreatedAt:  manifest.CreatedAt,
		MerkleRoot: manifest.MerkleRoot,
	})
}

// handleListBundles implements GET /bundles?page=&page_size=, returning
// summaries newest-first. An unparseable page/page_size falls back to
// its default rather than failing the request.
func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.Registry.ListSummaries()
	if err != nil {
		s.writeAPIError(w, apierrors.Wrap(err, "list bundles"))
		return
	}

	page := 1
	if v, perr := strconv.Atoi(r.URL.Query().Get("page")); perr == nil && v > 0 {
		page = v
	}

	pageSize := s.Config.DefaultPageSize
	if v, perr := strconv.Atoi(r.URL.Query().Get("page_size")); perr == nil && v > 0 {
		pageSize = v
	}

	paged := registry.Paginate(summaries, page, pageSize, s.Config.MaxPageSize)
	if paged == nil {
		paged = []bundlemodel.Summary{}
	}
	writeJSON(w, http.StatusOK, bundlemodel.ListResponse{Bundles: paged})
}

// handleDownloadBundle implements GET /bundles/{id}/download: stream the
// bundle's files, read fresh from the blob store, as a zip archive. The
// manifest is the sole source of truth for bundle_path; nothing is
// cached in the archive metadata beyond what the manifest records.
func (s *Server) handleDownloadBundle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if format := r.URL.Query().Get("format"); format != "" && format != "zip" {
		s.writeAPIError(w, apierrors.Newf(apierrors.KindUnsupportedFormat, "unsupported download format %q", format))
		return
	}

	manifest, err := s.Registry.GetManifest(id)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bundle_%s.zip"`, id))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return kzip.NewWriter(out, kzip.DefaultCompression)
	})
	defer zw.Close()

	for _, f := range manifest.Files {
		path, perr := s.Blobs.Path(f.Hash)
		if perr != nil {
			s.Log.WithError(perr).WithField("hash", f.Hash).Error("skip unreadable blob path during download")
			continue
		}

		src, openErr := os.Open(path)
		if openErr != nil {
			s.Log.WithError(openErr).WithField("hash", f.Hash).Error("skip unreadable blob during download")
			continue
		}

		entry, entryErr := zw.Create(f.BundlePath)
		if entryErr == nil {
			_, _ = io.Copy(entry, src)
		}
		_ = src.Close()
	}
}
