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
	"encoding/json"
	"net/http"

	"github.com/mfinelli/bundlestore/internal/apierrors"
)

type errorBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError funnels every internal error through the apierrors
// taxonomy before it reaches the wire, so a caller never sees an
// un-mapped status code or a leaked internal error string for
// Storage-kind failures.
func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		apiErr = apierrors.Wrap(err, "internal error")
	}

	body := errorBody{Error: apiErr.Message, Field: apiErr.Field, Missing: apiErr.Hashes}
	if body.Error == "" {
		body.Error = string(apiErr.Kind)
	}

	if apiErr.Kind == apierrors.KindStorage {
		s.Log.WithError(err).Error("storage error")
	}

	writeJSON(w, apiErr.Kind.HTTPStatus(), body)
}
