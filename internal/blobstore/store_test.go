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

package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfinelli/bundlestore/internal/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	return Store{Root: t.TempDir()}
}

func TestUploadThenExists(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	body := []byte("hello")
	hash := sha256Hex(body)

	res, err := s.Upload(context.Background(), hash, int64(len(body)), bytes.NewReader(body))
	require.Nil(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	exists, existsErr := s.Exists(hash)
	require.NoError(t, existsErr)
	assert.True(t, exists)

	path, pathErr := s.Path(hash)
	require.NoError(t, pathErr)
	assert.True(t, strings.HasSuffix(path, filepath.Join(hash[0:2], hash[2:4], hash)))

	on, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, body, on)
}

func TestUploadIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	body := []byte("idempotent upload")
	hash := sha256Hex(body)

	res1, err1 := s.Upload(context.Background(), hash, int64(len(body)), bytes.NewReader(body))
	require.Nil(t, err1)
	assert.Equal(t, StatusCreated, res1.Status)

	res2, err2 := s.Upload(context.Background(), hash, int64(len(body)), bytes.NewReader(body))
	require.Nil(t, err2)
	assert.Equal(t, StatusExists, res2.Status)

	path, _ := s.Path(hash)
	on, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, body, on)
}

func TestUploadHashMismatch(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	body := []byte("hello")
	wrongHash := strings.Repeat("a", 64)

	_, err := s.Upload(context.Background(), wrongHash, int64(len(body)), bytes.NewReader(body))
	require.NotNil(t, err)
	assert.Equal(t, apierrors.KindHashMismatch, err.Kind)

	path, _ := s.Path(wrongHash)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// temp dir should not retain the failed upload either
	entries, readErr := os.ReadDir(s.tmpDir())
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestUploadTooLarge(t *testing.T) {
	t.Parallel()

	s := Store{Root: t.TempDir(), MaxUploadSiz: 4}
	body := []byte("hello")
	hash := sha256Hex(body)

	_, err := s.Upload(context.Background(), hash, int64(len(body)), bytes.NewReader(body))
	require.NotNil(t, err)
	assert.Equal(t, apierrors.KindTooLarge, err.Kind)
}

func TestUploadEmptyFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	hash := sha256Hex(nil)

	res, err := s.Upload(context.Background(), hash, 0, bytes.NewReader(nil))
	require.Nil(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	exists, existsErr := s.Exists(hash)
	require.NoError(t, existsErr)
	assert.True(t, exists)
}

func TestUploadInvalidHash(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Upload(context.Background(), "not-a-hash", 0, bytes.NewReader(nil))
	require.NotNil(t, err)
	assert.Equal(t, apierrors.KindInvalidHash, err.Kind)
}

func TestExistsFalseForUnknownHash(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	exists, err := s.Exists(strings.Repeat("0", 64))
	require.NoError(t, err)
	assert.False(t, exists)
}
