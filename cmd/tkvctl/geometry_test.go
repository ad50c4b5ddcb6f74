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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGeometryOverride(t *testing.T) {
	geo, err := parseGeometryOverride("64MiB", "4GiB")
	require.NoError(t, err)
	require.Equal(t, int64(64<<20), geo.SizeNow)
	require.Equal(t, int64(4<<30), geo.SizeUpper)
}

func TestParseGeometryOverrideRejectsBadSize(t *testing.T) {
	_, err := parseGeometryOverride("not-a-size", "")
	require.Error(t, err)
}
