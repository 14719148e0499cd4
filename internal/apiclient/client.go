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

// Package apiclient is the bundlectl-side HTTP client for the bundle
// store's API surface: preflight, blob upload, bundle create, list and
// download, plus the status healthcheck.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mfinelli/bundlestore/internal/bundlemodel"
)

// Client talks to one bundle-server instance.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client with a bounded per-request timeout. The timeout
// applies to every request, blob uploads and download bodies included;
// a deadline on the context passed to a method applies in addition to
// it, and whichever expires first ends the request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// APIError is returned when the server responds with a non-2xx status
// and a JSON error body.
type APIError struct {
	Status  int
	Message string
	Field   string
	Missing []string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (field: %s)", e.Message, e.Field)
	}
	return e.Message
}

type errorBody struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func (c *Client) url(path string) string { return c.BaseURL + path }

func decodeError(resp *http.Response) error {
	var eb errorBody
	b, _ := io.ReadAll(resp.Body)
	if jsonErr := json.Unmarshal(b, &eb); jsonErr != nil || eb.Error == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	}
	return &APIError{Status: resp.StatusCode, Message: eb.Error, Field: eb.Field, Missing: eb.Missing}
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (bundlemodel.StatusResponse, error) {
	var out bundlemodel.StatusResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/status"), nil)
	if err != nil {
		return out, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}

// Preflight calls POST /bundles/preflight and returns the hashes the
// server has not seen yet.
func (c *Client) Preflight(ctx context.Context, files []bundlemodel.File) ([]string, error) {
	body, err := json.Marshal(bundlemodel.PreflightRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("marshal preflight request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/bundles/preflight"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build preflight request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preflight request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var out bundlemodel.PreflightResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode preflight response: %w", err)
	}
	return out.Missing, nil
}

// UploadBlob streams body (exactly sizeBytes long) to PUT
// /blobs/{hash}?size_bytes=N. Returns true if the server reports the
// blob was newly created, false if it already existed.
func (c *Client) UploadBlob(ctx context.Context, hash string, sizeBytes int64, body io.Reader) (created bool, err error) {
	q := url.Values{}
	q.Set("size_bytes", strconv.FormatInt(sizeBytes, 10))
	target := c.url("/blobs/"+hash) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return false, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = sizeBytes
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("upload blob %s: %w", hash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return false, decodeError(resp)
	}

	var out bundlemodel.UploadStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode upload response: %w", err)
	}
	return out.Status == "created", nil
}

// CreateBundle calls POST /bundles.
func (c *Client) CreateBundle(ctx context.Context, draft bundlemodel.CreateRequest) (bundlemodel.CreateResponse, error) {
	var out bundlemodel.CreateResponse

	body, err := json.Marshal(draft)
	if err != nil {
		return out, fmt.Errorf("marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/bundles"), bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, fmt.Errorf("create bundle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return out, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode create response: %w", err)
	}
	return out, nil
}

// ListBundles calls GET /bundles?page=&page_size=.
func (c *Client) ListBundles(ctx context.Context, page, pageSize int) ([]bundlemodel.Summary, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}

	target := c.url("/bundles")
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list bundles request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var out bundlemodel.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return out.Bundles, nil
}

// Download calls GET /bundles/{id}/download?format=... and returns the
// raw response body (a zip stream) for the caller to extract. An empty
// format defaults to "zip", the only format the server supports. The
// caller must close the returned ReadCloser.
func (c *Client) Download(ctx context.Context, id, format string) (io.ReadCloser, error) {
	if format == "" {
		format = "zip"
	}
	q := url.Values{}
	q.Set("format", format)
	target := c.url("/bundles/"+id+"/download") + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download bundle %s: %w", id, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}
