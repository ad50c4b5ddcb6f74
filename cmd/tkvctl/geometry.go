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
	"github.com/coldbrewdb/tkv/kv"
	"github.com/coldbrewdb/tkv/tkv"
)

// geometryOverride is an alias kept local to the command package so
// open's flag-parsing code reads as operating on "a geometry", not
// reaching into package kv's type directly from two places.
type geometryOverride = kv.Geometry

// parseGeometryOverride builds a Geometry starting from tkv's own
// defaults, overriding size_now/size_upper from human-readable flag
// text ("64MiB", "4GiB", ...).
func parseGeometryOverride(sizeNow, sizeUpper string) (*geometryOverride, error) {
	geo := kv.Geometry{
		SizeLower:       256 << 10,
		SizeNow:         64 << 20,
		SizeUpper:       4 << 30,
		GrowthStep:      2 << 20,
		ShrinkThreshold: 1 << 20,
		PageSize:        4096,
	}
	if sizeNow != "" {
		n, err := tkv.ParseByteSize(sizeNow)
		if err != nil {
			return nil, err
		}
		geo.SizeNow = int64(n)
	}
	if sizeUpper != "" {
		n, err := tkv.ParseByteSize(sizeUpper)
		if err != nil {
			return nil, err
		}
		geo.SizeUpper = int64(n)
	}
	return &geo, nil
}
