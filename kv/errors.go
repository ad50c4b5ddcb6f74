// Copyright 2024 The Coldbrew Authors
// This file is part of Coldbrew.
//
// Coldbrew is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Coldbrew is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Coldbrew. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Compare with errors.Is; EngineErr/OSErr also
// support errors.As to recover the wrapped code.
var (
	// ErrClosed is raised by any operation on a Database (or anything
	// derived from one) after Close has been called.
	ErrClosed = errors.New("kv: database is closed")

	// ErrUseAfterFinish is raised when a Snapshot or Transaction is used
	// after Finish/Commit/Abort has already run against it.
	ErrUseAfterFinish = errors.New("kv: snapshot or transaction already finished")

	// ErrIncompatible is raised when a collection is reopened with a
	// key_sort or value_sort that disagrees with how it was created.
	ErrIncompatible = errors.New("kv: collection reopened with incompatible key/value sort")

	// ErrKeyMismatch is raised by Append when the supplied key is not
	// strictly greater than every key currently in the collection.
	ErrKeyMismatch = errors.New("kv: append key is not strictly greater than the last key")

	// ErrBadValueSize is raised when an integer-typed conversion is
	// attempted against a value of the wrong width.
	ErrBadValueSize = errors.New("kv: value has the wrong size for this integer conversion")

	// ErrNotSupported marks an engine operation this binding does not
	// implement (kept distinct from EngineError so callers can probe
	// for it with errors.Is without inspecting engine codes).
	ErrNotSupported = errors.New("kv: operation not supported by this engine binding")
)

// EngineErr wraps any engine failure that isn't one of the soft,
// flag-conditioned outcomes collapsed to bool/empty-result by the CRUD
// layer (KeyExist, NotFound, MultipleValues). Code is the engine's own
// opaque error code, preserved for diagnostics.
type EngineErr struct {
	Code int
	Op   string
	err  error
}

func NewEngineErr(op string, code int, cause error) *EngineErr {
	return &EngineErr{Code: code, Op: op, err: cause}
}

func (e *EngineErr) Error() string {
	return fmt.Sprintf("kv: engine error in %s (code %d): %v", e.Op, e.Code, e.err)
}

func (e *EngineErr) Unwrap() error { return e.err }

// OSErr wraps a positive, OS-level errno the engine reported (as opposed
// to its own negative internal codes).
type OSErr struct {
	Errno int
	Op    string
	err   error
}

func NewOSErr(op string, errno int, cause error) *OSErr {
	return &OSErr{Errno: errno, Op: op, err: cause}
}

func (e *OSErr) Error() string {
	return fmt.Sprintf("kv: os error in %s (errno %d): %v", e.Op, e.Errno, e.err)
}

func (e *OSErr) Unwrap() error { return e.err }
