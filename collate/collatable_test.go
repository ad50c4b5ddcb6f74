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

package collate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldbrewdb/tkv/collate"
)

func str(s string) *collate.Collatable { return collate.New().AddString(s) }
func i64(v int64) *collate.Collatable  { return collate.New().AddI64(v) }

func TestOrderingScenarios(t *testing.T) {
	require.Less(t, str("hi").Cmp(str("high")), 0)
	require.Less(t, i64(-12345).Cmp(i64(-12)), 0)

	require.Greater(t, collate.Of(int64(17), int64(9), "hi").Cmp(collate.Of(int64(17), int64(9), "ha")), 0)
	require.Less(t, collate.Of(int64(17), int64(9), "hi").Cmp(collate.Of(int64(17), int64(10))), 0)

	require.Greater(t, collate.New().AddBool(true).Cmp(collate.New().AddNull()), 0)
}

func TestIntegerRoundTrip(t *testing.T) {
	values := map[int64]bool{}
	for i := int64(-100000); i <= 100000; i++ {
		values[i] = true
	}
	for k := uint(0); k <= 62; k++ {
		p := int64(1) << k
		for _, v := range []int64{p, p - 1, p + 1, -p, -(p - 1), -(p + 1)} {
			values[v] = true
		}
	}
	values[collate.MinInt64] = true
	values[collate.MaxInt64] = true

	for v := range values {
		enc := collate.New().AddI64(v)
		got := enc.At(0)
		require.Equal(t, collate.KindInt, got.Kind, "value %d", v)
		require.Equal(t, v, got.Int, "round trip of %d", v)
	}
}

func TestIntegerOrderingIsMonotonic(t *testing.T) {
	vals := []int64{collate.MinInt64, -1 << 40, -100000, -12345, -200, -12, -1, 0, 1, 12, 200, 12345, 100000, 1 << 40, collate.MaxInt64}
	for i := 1; i < len(vals); i++ {
		a := collate.New().AddI64(vals[i-1])
		b := collate.New().AddI64(vals[i])
		require.Less(t, a.Cmp(b), 0, "%d should sort before %d", vals[i-1], vals[i])
	}
}

func TestTupleLengthRule(t *testing.T) {
	// Equal common prefix, longer tuple is greater (rule 2).
	short := collate.Of(int64(1), int64(2))
	long := collate.Of(int64(1), int64(2), int64(3))
	require.Less(t, short.Cmp(long), 0)
}

func TestIndexedAccessPastEndYieldsNull(t *testing.T) {
	c := collate.Of(int64(1), "two")
	require.Equal(t, 2, c.Len())
	item := c.At(5)
	require.Equal(t, collate.KindNull, item.Kind)
}

func TestEmbeddedNULPanics(t *testing.T) {
	require.Panics(t, func() {
		collate.New().AddString("bad\x00string")
	})
}

func TestConcatAndClear(t *testing.T) {
	a := collate.Of(int64(1))
	b := collate.Of("x")
	a.Concat(b)
	require.Equal(t, 2, a.Len())
	a.Clear()
	require.True(t, a.IsEmpty())
}

func TestZeroEncodesWithEmptyPayload(t *testing.T) {
	zero := collate.New().AddI64(0)
	// tag 0x20, no payload.
	require.Equal(t, []byte{0x20}, zero.Bytes())
}

func TestNegativeOneEncodesWithEmptyPayload(t *testing.T) {
	negOne := collate.New().AddI64(-1)
	require.Equal(t, []byte{0x18}, negOne.Bytes())
}
