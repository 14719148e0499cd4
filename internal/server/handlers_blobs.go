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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mfinelli/bundlestore/internal/apierrors"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
)

// handleUploadBlob implements PUT /blobs/{hash}?size_bytes=N.
//
// The body is streamed straight into the blob store; nothing here
// buffers it. declaredSize is validated before a single byte is read so
// an oversized upload is rejected without touching the filesystem.
func (s *Server) handleUploadBlob(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	declaredSize, parseErr := strconv.ParseInt(r.URL.Query().Get("size_bytes"), 10, 64)
	if parseErr != nil {
		s.writeAPIError(w, apierrors.New(apierrors.KindInvalidHash, "size_bytes query parameter must be an integer"))
		return
	}

	result, err := s.Blobs.Upload(r.Context(), hash, declaredSize, r.Body)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}

	status := http.StatusOK
	body := bundlemodel.UploadStatusResponse{Status: string(result.Status)}
	if result.Status == "created" {
		status = http.StatusCreated
	}

	writeJSON(w, status, body)
}
