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

// Package blobstore implements the content-addressed blob store: streaming
// upload with hash verification, atomic publication via rename, and a
// two-level fan-out layout under the data root.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mfinelli/bundlestore/internal/apierrors"
)

// Store is a content-addressed blob store rooted at Root.
//
//	Root/blobs/<xx>/<yy>/<64-hex-hash>   published blobs
//	Root/tmp/<iso-timestamp>_<uuid>      upload staging
type Store struct {
	Root         string
	MaxUploadSiz int64 // 0 means unlimited
}

// Status reports whether Upload created a new blob or found it already
// published.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
)

func (s Store) blobsDir() string { return filepath.Join(s.Root, "blobs") }
func (s Store) tmpDir() string   { return filepath.Join(s.Root, "tmp") }

// Path returns the deterministic fan-out path for hash:
// blobs/<hash[0:2]>/<hash[2:4]>/<hash>.
func (s Store) Path(hash string) (string, error) {
	if len(hash) != 64 {
		return "", fmt.Errorf("invalid sha256 length: %d", len(hash))
	}
	return filepath.Join(s.blobsDir(), hash[0:2], hash[2:4], hash), nil
}

// Exists reports whether a blob file with this identity is published.
func (s Store) Exists(hash string) (bool, error) {
	path, err := s.Path(hash)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob %s: %w", hash, err)
}

// UploadResult reports the outcome of Upload.
type UploadResult struct {
	Status    Status
	SizeBytes int64
}

// Upload validates hash and declaredSize, then streams body into the
// store. See the package doc and the specification's Blob Store
// contract for the full algorithm; in short:
//
//  1. Validate hash (64 lowercase hex) and declaredSize (>=0, <= max).
//  2. If the blob already exists, drain and discard body, return Exists.
//  3. Stream body to a uniquely named temp file under tmp/, hashing as
//     we write. Never buffer the whole body in memory.
//  4. On EOF, compare the streamed digest to hash. Mismatch: unlink temp,
//     fail HashMismatch. The declared size is never authoritative.
//  5. Ensure the fan-out parent directories exist, then rename the temp
//     file into place. Rename is the commit point; a concurrent winner
//     of the same hash makes this rename redundant but harmless.
func (s Store) Upload(ctx context.Context, hash string, declaredSize int64, body io.Reader) (UploadResult, *apierrors.Error) {
	if err := validateHash(hash); err != nil {
		return UploadResult{}, err
	}
	if declaredSize < 0 {
		return UploadResult{}, &apierrors.Error{Kind: apierrors.KindInvalidHash, Message: "declared size cannot be negative"}
	}
	if s.MaxUploadSiz > 0 && declaredSize > s.MaxUploadSiz {
		return UploadResult{}, &apierrors.Error{
			Kind:    apierrors.KindTooLarge,
			Message: fmt.Sprintf("declared size %d exceeds maximum %d", declaredSize, s.MaxUploadSiz),
		}
	}

	finalPath, perr := s.Path(hash)
	if perr != nil {
		return UploadResult{}, &apierrors.Error{Kind: apierrors.KindInvalidHash, Message: perr.Error()}
	}

	if exists, err := s.Exists(hash); err != nil {
		return UploadResult{}, apierrors.Wrap(err, "check blob existence")
	} else if exists {
		_, _ = io.Copy(io.Discard, body)
		st, statErr := os.Stat(finalPath)
		size := declaredSize
		if statErr == nil {
			size = st.Size()
		}
		return UploadResult{Status: StatusExists, SizeBytes: size}, nil
	}

	if err := os.MkdirAll(s.tmpDir(), 0o755); err != nil {
		return UploadResult{}, apierrors.Wrap(err, "create tmp dir")
	}

	tmpName := filepath.Join(s.tmpDir(), fmt.Sprintf("%s_%s", nowStamp(), uuid.NewString()))
	tmp, err := os.OpenFile(tmpName, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return UploadResult{}, apierrors.Wrap(err, "create temp upload file")
	}

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	h := sha256.New()
	w := io.MultiWriter(tmp, h)

	n, copyErr := copyWithContext(ctx, w, body, make([]byte, 64*1024))
	if copyErr != nil {
		cleanup()
		return UploadResult{}, apierrors.Wrap(copyErr, "stream upload body")
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return UploadResult{}, apierrors.Wrap(err, "fsync temp upload file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return UploadResult{}, apierrors.Wrap(err, "close temp upload file")
	}

	sumHex := hex.EncodeToString(h.Sum(nil))
	if sumHex != hash {
		_ = os.Remove(tmpName)
		return UploadResult{}, &apierrors.Error{
			Kind:    apierrors.KindHashMismatch,
			Message: fmt.Sprintf("streamed digest %s does not match declared hash %s", sumHex, hash),
		}
	}

	finalDir := filepath.Dir(finalPath)
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		_ = os.Remove(tmpName)
		return UploadResult{}, apierrors.Wrap(err, "create blob fan-out directory")
	}

	if err := os.Rename(tmpName, finalPath); err != nil {
		// Lost a rename race: the winner's bytes are identity-equal to
		// ours, so this is equivalent to Exists.
		if _, statErr := os.Stat(finalPath); statErr == nil {
			_ = os.Remove(tmpName)
			return UploadResult{Status: StatusExists, SizeBytes: n}, nil
		}
		_ = os.Remove(tmpName)
		return UploadResult{}, apierrors.Wrap(err, "rename blob into place")
	}

	return UploadResult{Status: StatusCreated, SizeBytes: n}, nil
}

func validateHash(hash string) *apierrors.Error {
	if len(hash) != 64 {
		return &apierrors.Error{Kind: apierrors.KindInvalidHash, Message: "hash must be 64 hex characters"}
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &apierrors.Error{Kind: apierrors.KindInvalidHash, Message: "hash must be lowercase hex"}
		}
	}
	return nil
}

// copyWithContext copies src to dst using buf, checking ctx between
// reads so long uploads remain cancellable.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
			}
			if ew != nil {
				return total, ew
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) {
				return total, nil
			}
			return total, er
		}
	}
}

func nowStamp() string {
	return time.Now().UTC().Format("20060102T150405.000000000Z")
}
