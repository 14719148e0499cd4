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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/mfinelli/bundlestore/internal/blobstore"
	"github.com/mfinelli/bundlestore/internal/bundlemodel"
	"github.com/mfinelli/bundlestore/internal/config"
	"github.com/mfinelli/bundlestore/internal/registry"
)

// newTestServer starts an httptest server and returns it alongside the
// data directory backing it, so tests can inject filesystem state (e.g.
// a corrupt summary file) that the HTTP API has no way to produce.
func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.ServerConfig{
		DataDir:         root,
		MaxUploadBytes:  1 << 20,
		DefaultPageSize: 50,
		MaxPageSize:     200,
	}

	blobs := blobstore.Store{Root: root, MaxUploadSiz: cfg.MaxUploadBytes}
	reg := registry.Registry{Root: root}

	handler := New(cfg, blobs, reg, log)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, root
}

func putBlob(t *testing.T, baseURL, hash, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/blobs/%s?size_bytes=%d", baseURL, hash, len(body)),
		strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestIdempotentUpload(t *testing.T) {
	srv, _ := newTestServer(t)
	hash := sha256Hex("hello")

	resp1 := putBlob(t, srv.URL, hash, "hello")
	defer resp1.Body.Close()
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	var out1 bundlemodel.UploadStatusResponse
	require.NoError(t, json.NewDecoder(resp1.Body).Decode(&out1))
	require.Equal(t, "created", out1.Status)

	resp2 := putBlob(t, srv.URL, hash, "hello")
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var out2 bundlemodel.UploadStatusResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&out2))
	require.Equal(t, "exists", out2.Status)
}

func TestHashMismatch(t *testing.T) {
	srv, _ := newTestServer(t)
	hash := strings.Repeat("a", 64)

	resp := putBlob(t, srv.URL, hash, "hello")
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReferentialClosure(t *testing.T) {
	srv, _ := newTestServer(t)

	draft := bundlemodel.CreateRequest{
		HashAlgo: bundlemodel.HashAlgo,
		Files: []bundlemodel.File{
			{BundlePath: "a.txt", SizeBytes: 5, Hash: sha256Hex("hello"), HashAlgo: bundlemodel.HashAlgo},
		},
	}
	body, err := json.Marshal(draft)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/bundles", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConcurrentUploadOfIdenticalHash(t *testing.T) {
	srv, _ := newTestServer(t)
	hash := sha256Hex("concurrent")

	var wg sync.WaitGroup
	statuses := make([]int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := putBlob(t, srv.URL, hash, "concurrent")
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	var created int
	for _, s := range statuses {
		require.Contains(t, []int{http.StatusCreated, http.StatusOK}, s)
		if s == http.StatusCreated {
			created++
		}
	}
	require.LessOrEqual(t, created, 1)
}

func TestListingSkipsCorruption(t *testing.T) {
	srv, root := newTestServer(t)

	hash := sha256Hex("data")
	resp := putBlob(t, srv.URL, hash, "data")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	draft := bundlemodel.CreateRequest{
		HashAlgo: bundlemodel.HashAlgo,
		Files: []bundlemodel.File{
			{BundlePath: "f.txt", SizeBytes: 4, Hash: hash, HashAlgo: bundlemodel.HashAlgo},
		},
	}
	body, err := json.Marshal(draft)
	require.NoError(t, err)

	createResp, err := http.Post(srv.URL+"/bundles", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	summariesDir := filepath.Join(root, "bundles", "summaries")
	require.NoError(t, os.WriteFile(filepath.Join(summariesDir, "corrupt.json"), []byte("{"), 0o644))

	listResp, err := http.Get(srv.URL + "/bundles")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var listed bundlemodel.ListResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listed))
	require.Len(t, listed.Bundles, 1)
}

func TestPreflightReportsMissing(t *testing.T) {
	srv, _ := newTestServer(t)

	hash := sha256Hex("present")
	resp := putBlob(t, srv.URL, hash, "present")
	resp.Body.Close()

	req := bundlemodel.PreflightRequest{Files: []bundlemodel.File{
		{BundlePath: "a.txt", SizeBytes: 7, Hash: hash, HashAlgo: bundlemodel.HashAlgo},
		{BundlePath: "b.txt", SizeBytes: 4, Hash: sha256Hex("gone"), HashAlgo: bundlemodel.HashAlgo},
	}}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	preResp, err := http.Post(srv.URL+"/bundles/preflight", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer preResp.Body.Close()
	require.Equal(t, http.StatusOK, preResp.StatusCode)

	var out bundlemodel.PreflightResponse
	require.NoError(t, json.NewDecoder(preResp.Body).Decode(&out))
	require.Equal(t, []string{sha256Hex("gone")}, out.Missing)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out bundlemodel.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "ok", out.Status)
}

func TestDownloadRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	hash := sha256Hex("round-trip")
	resp := putBlob(t, srv.URL, hash, "round-trip")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	draft := bundlemodel.CreateRequest{
		HashAlgo: bundlemodel.HashAlgo,
		Files: []bundlemodel.File{
			{BundlePath: "nested/file.txt", SizeBytes: 10, Hash: hash, HashAlgo: bundlemodel.HashAlgo},
		},
	}
	body, err := json.Marshal(draft)
	require.NoError(t, err)

	createResp, err := http.Post(srv.URL+"/bundles", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var created bundlemodel.CreateResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	dlResp, err := http.Get(srv.URL + "/bundles/" + created.ID + "/download?format=zip")
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	require.Equal(t, "application/zip", dlResp.Header.Get("Content-Type"))
}

func TestDownloadRejectsUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	hash := sha256Hex("formatted")
	resp := putBlob(t, srv.URL, hash, "formatted")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	draft := bundlemodel.CreateRequest{
		HashAlgo: bundlemodel.HashAlgo,
		Files: []bundlemodel.File{
			{BundlePath: "f.txt", SizeBytes: 9, Hash: hash, HashAlgo: bundlemodel.HashAlgo},
		},
	}
	body, err := json.Marshal(draft)
	require.NoError(t, err)

	createResp, err := http.Post(srv.URL+"/bundles", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var created bundlemodel.CreateResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	dlResp, err := http.Get(srv.URL + "/bundles/" + created.ID + "/download?format=tar")
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusUnsupportedMediaType, dlResp.StatusCode)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
