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

package tkv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldbrewdb/tkv/tkv"
)

func seedWidgets(t *testing.T, db *tkv.Database, coll *tkv.Collection, keys ...string) {
	t.Helper()
	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		for _, k := range keys {
			if err := ct.Put(k, []byte(k)); err != nil {
				return err
			}
		}
		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func collectKeys(t *testing.T, cs tkv.CollectionSnapshot, opts ...tkv.CursorOption) []string {
	t.Helper()
	var out []string
	for k, v := range cs.Pairs(opts...) {
		kb, err := k.Bytes()
		require.NoError(t, err)
		vb, err := v.Bytes()
		require.NoError(t, err)
		require.Equal(t, string(kb), string(vb))
		out = append(out, string(kb))
	}
	return out
}

func TestCursorForwardAndReverseIteration(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "b", "d", "a", "c")

	err := tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		require.Equal(t, []string{"a", "b", "c", "d"}, collectKeys(t, cs))

		var rev []string
		for k := range cs.PairsReversed() {
			kb, err := k.Bytes()
			require.NoError(t, err)
			rev = append(rev, string(kb))
		}
		require.Equal(t, []string{"d", "c", "b", "a"}, rev)
		return nil
	})
	require.NoError(t, err)
}

func TestCursorBoundedRange(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "a", "b", "c", "d", "e")

	err := tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		require.Equal(t, []string{"b", "c", "d"}, collectKeys(t, cs, tkv.Range("b", "d")...))
		require.Equal(t, []string{"c"}, collectKeys(t, cs, tkv.WithMinKey("b"), tkv.WithMaxKey("d"), tkv.WithSkipMin(), tkv.WithSkipMax()))
		return nil
	})
	require.NoError(t, err)
}

func TestCursorLastOvershootsToClosestKey(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "a", "c", "e")

	err := tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		cur, err := cs.NewCursor(tkv.WithMaxKey("d"))
		require.NoError(t, err)
		defer cur.Close()

		require.NoError(t, cur.Last())
		require.True(t, cur.HasValue())
		kb, err := cur.Key().Bytes()
		require.NoError(t, err)
		require.Equal(t, "c", string(kb), "max_key absent: Last should land on the closest key below it")
		return nil
	})
	require.NoError(t, err)
}

func TestCursorSeekExact(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "a", "b")

	err := tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		cur, err := cs.NewCursor()
		require.NoError(t, err)
		defer cur.Close()

		require.NoError(t, cur.SeekExact("a"))
		require.True(t, cur.HasValue())

		require.NoError(t, cur.SeekExact("missing"))
		require.False(t, cur.HasValue())
		return nil
	})
	require.NoError(t, err)
}

func TestCursorDupNavigation(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "tags", tkv.KeyLexForward, tkv.ValueLexForward, true)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		for _, v := range []string{"blue", "green", "red"} {
			if _, err := ct.Insert("a", []byte(v)); err != nil {
				return err
			}
		}
		if _, err := ct.Insert("b", []byte("only")); err != nil {
			return err
		}
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		cur, err := cs.NewCursor()
		require.NoError(t, err)
		defer cur.Close()

		require.NoError(t, cur.First())
		n, err := cur.ValueCount()
		require.NoError(t, err)
		require.Equal(t, uint64(3), n)

		require.NoError(t, cur.NextKey())
		kb, err := cur.Key().Bytes()
		require.NoError(t, err)
		require.Equal(t, "b", string(kb), "NextKey should skip remaining duplicates of the current key")
		return nil
	})
	require.NoError(t, err)
}

func TestCursorOnFirstOnLastRespectBounds(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "a", "b", "c", "d", "e")

	err := tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		cur, err := cs.NewCursor(tkv.WithMinKey("b"), tkv.WithMaxKey("d"))
		require.NoError(t, err)
		defer cur.Close()

		require.NoError(t, cur.First())
		kb, err := cur.Key().Bytes()
		require.NoError(t, err)
		require.Equal(t, "b", string(kb))

		onFirst, err := cur.OnFirst()
		require.NoError(t, err)
		require.True(t, onFirst, "sitting on the range's first entry must report OnFirst, even though \"b\" is not the collection's absolute first key")

		onLast, err := cur.OnLast()
		require.NoError(t, err)
		require.False(t, onLast)

		require.NoError(t, cur.Last())
		kb, err = cur.Key().Bytes()
		require.NoError(t, err)
		require.Equal(t, "d", string(kb))

		onLast, err = cur.OnLast()
		require.NoError(t, err)
		require.True(t, onLast, "sitting on the range's last entry must report OnLast, even though \"d\" is not the collection's absolute last key")

		onFirst, err = cur.OnFirst()
		require.NoError(t, err)
		require.False(t, onFirst)

		// Position remains intact across both calls.
		kb, err = cur.Key().Bytes()
		require.NoError(t, err)
		require.Equal(t, "d", string(kb))
		return nil
	})
	require.NoError(t, err)
}

func TestCursorDeleteCurrentBypassesHooks(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)
	seedWidgets(t, db, coll, "a", "b", "c")

	fired := false
	coll.AddChangeHook(func(uint64, []byte, []byte, []byte) error {
		fired = true
		return nil
	})

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		cur, err := ct.NewCursor()
		require.NoError(t, err)
		defer cur.Close()

		require.NoError(t, cur.SeekExact("b"))
		require.NoError(t, cur.DeleteCurrent())

		return ct.Txn().Commit()
	})
	require.NoError(t, err)
	require.False(t, fired, "cursor deletes are documented to bypass change hooks")

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		require.Equal(t, []string{"a", "c"}, collectKeys(t, cs))
		return nil
	})
	require.NoError(t, err)
}
