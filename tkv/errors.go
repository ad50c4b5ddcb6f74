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

package tkv

import (
	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
)

// ErrInvalidConfig is raised by Database.Collection when the requested
// key/value sort and allow_duplicates combination violates the
// collection invariant: allow_duplicates requires a non-opaque
// value_sort, and a non-opaque value_sort requires allow_duplicates.
var ErrInvalidConfig = errors.New("tkv: invalid collection key/value sort combination")

// Re-export the kv package's typed error kinds (§7) under the tkv
// import path, so callers of this package never need to import kv
// directly just to do errors.Is(err, tkv.ErrClosed).
var (
	ErrClosed         = kv.ErrClosed
	ErrUseAfterFinish = kv.ErrUseAfterFinish
	ErrIncompatible   = kv.ErrIncompatible
	ErrKeyMismatch    = kv.ErrKeyMismatch
	ErrBadValueSize   = kv.ErrBadValueSize
)
