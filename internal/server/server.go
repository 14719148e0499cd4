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

// Package server wires the Blob Store, the Bundle Registry and the
// Merkle Engine into the HTTP surface described by the specification's
// §4.4, using gorilla/mux for path-parameter routing.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mfinelli/bundlestore/internal/blobstore"
	"github.com/mfinelli/bundlestore/internal/config"
	"github.com/mfinelli/bundlestore/internal/registry"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Blobs    blobstore.Store
	Registry registry.Registry
	Config   config.ServerConfig
	Log      *logrus.Logger
}

// New builds an http.Handler exposing the full API surface:
//
//	POST /bundles/preflight
//	PUT  /blobs/{hash}
//	POST /bundles
//	GET  /bundles
//	GET  /bundles/{id}/download
//	GET  /status
func New(cfg config.ServerConfig, blobs blobstore.Store, reg registry.Registry, log *logrus.Logger) http.Handler {
	s := &Server{Blobs: blobs, Registry: reg, Config: cfg, Log: log}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/bundles/preflight", s.handlePreflight).Methods(http.MethodPost)
	r.HandleFunc("/blobs/{hash}", s.handleUploadBlob).Methods(http.MethodPut)
	r.HandleFunc("/bundles", s.handleCreateBundle).Methods(http.MethodPost)
	r.HandleFunc("/bundles", s.handleListBundles).Methods(http.MethodGet)
	r.HandleFunc("/bundles/{id}/download", s.handleDownloadBundle).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = withLogging(log, handler)
	handler = withRequestID(handler)

	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second
	if timeout > 0 {
		handler = withTimeout(timeout, handler)
	}

	return handler
}
