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

// Package apierrors defines the error-kind taxonomy shared by the HTTP
// surface and the client: every failure the core can produce maps to
// exactly one Kind, and every Kind maps to exactly one HTTP status.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error categories the core can surface.
type Kind string

const (
	KindInvalidHash       Kind = "InvalidHash"
	KindInvalidPath       Kind = "InvalidPath"
	KindTooLarge          Kind = "TooLarge"
	KindHashMismatch      Kind = "HashMismatch"
	KindMissingBlobs      Kind = "MissingBlobs"
	KindMerkleMismatch    Kind = "MerkleMismatch"
	KindIdConflict        Kind = "IdConflict"
	KindNotFound          Kind = "NotFound"
	KindUnsupportedFormat Kind = "UnsupportedFormat"
	KindStorage           Kind = "Storage"
)

// HTTPStatus returns the status code a Kind maps to, per the error
// handling design's table. Unknown kinds map to 500, matching the
// Storage catch-all.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidHash, KindInvalidPath:
		return http.StatusUnprocessableEntity
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindHashMismatch, KindMissingBlobs, KindMerkleMismatch, KindIdConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed API error: a Kind, a human-readable message, and
// (for validation failures) the offending field name.
type Error struct {
	Kind    Kind
	Message string
	Field   string // optional, set for field-level validation failures

	// Hashes lists the blob hashes that triggered a MissingBlobs error.
	Hashes []string

	Err error // wrapped underlying cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Storage-kind Error from an underlying I/O failure.
func Wrap(err error, message string) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// As extracts an *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
