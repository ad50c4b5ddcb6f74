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

// Package mathutil holds small integer-overflow helpers shared by the
// sequence counter and the collatable integer codec.
package mathutil

import "math/bits"

// Integer limit values, used by the collatable codec's boundary tests.
const (
	MaxInt64 = 1<<63 - 1
	MinInt64 = -1 << 63
)

// SafeAdd returns x+y and reports whether the addition overflowed.
func SafeAdd(x, y uint64) (sum uint64, overflowed bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// CeilDiv divides x by y, rounding up. Returns 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}
