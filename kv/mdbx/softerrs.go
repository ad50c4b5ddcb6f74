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

package mdbx

import "errors"

// These mark the three "soft" outcomes §7 says a flag-aware writer
// collapses to a plain bool rather than propagating as a typed error.
// They never escape this package: package tkv's CRUD layer probes for
// them with the Is* functions below and converts to (false, nil).
var (
	errKeyExist       = errors.New("mdbx: key/pair already exists")
	errNotFoundSoft    = errors.New("mdbx: key not found")
	errMultipleValues = errors.New("mdbx: flag incompatible with dup-sort state")
)

// IsKeyExist reports whether err is the soft "already exists" outcome.
func IsKeyExist(err error) bool { return errors.Is(err, errKeyExist) }

// IsNotFoundSoft reports whether err is the soft "absent" outcome.
func IsNotFoundSoft(err error) bool { return errors.Is(err, errNotFoundSoft) }

// IsMultipleValues reports whether err is the soft dup-sort-flag
// mismatch outcome.
func IsMultipleValues(err error) bool { return errors.Is(err, errMultipleValues) }
