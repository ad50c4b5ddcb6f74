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

func TestPutAndGet(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		require.NoError(t, ct.Put("a", []byte("one")))
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		v, err := cs.Get("a")
		require.NoError(t, err)
		b, err := v.Bytes()
		require.NoError(t, err)
		require.Equal(t, []byte("one"), b)
		return nil
	})
	require.NoError(t, err)
}

func TestPutWithNoDataDeletes(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		require.NoError(t, ct.Put("a", []byte("one")))
		require.NoError(t, ct.Put("a", tkv.NoData))
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		v, err := cs.Get("a")
		require.NoError(t, err)
		require.True(t, v.IsNil())
		return nil
	})
	require.NoError(t, err)
}

func TestInsertRejectsExisting(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		ok, err := ct.Insert("a", []byte("one"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = ct.Insert("a", []byte("two"))
		require.NoError(t, err)
		require.False(t, ok)

		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		v, err := cs.Get("a")
		require.NoError(t, err)
		b, err := v.Bytes()
		require.NoError(t, err)
		require.Equal(t, []byte("one"), b, "insert on an existing key must not overwrite it")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRequiresExisting(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		ok, err := ct.Update("missing", []byte("x"))
		require.NoError(t, err)
		require.False(t, ok)
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		v, err := cs.Get("missing")
		require.NoError(t, err)
		require.True(t, v.IsNil(), "a failed Update must not leave a stray key behind")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateAndGetReturnsOldValue(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		_, err := ct.Insert("a", []byte("one"))
		require.NoError(t, err)

		old, err := ct.UpdateAndGet("a", []byte("two"))
		require.NoError(t, err)
		require.Equal(t, []byte("one"), old)

		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func TestAppendEnforcesOrdering(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		require.NoError(t, ct.Append("a", []byte("1")))
		require.NoError(t, ct.Append("b", []byte("2")))

		err := ct.Append("aa", []byte("3"))
		require.ErrorIs(t, err, tkv.ErrKeyMismatch)

		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func TestDelAndGet(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		require.NoError(t, ct.Put("a", []byte("one")))

		old, err := ct.DelAndGet("a")
		require.NoError(t, err)
		require.Equal(t, []byte("one"), old)

		old, err = ct.DelAndGet("a")
		require.NoError(t, err)
		require.Nil(t, old, "deleting an absent key must not error")

		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func TestDelValueOnDupSortCollection(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "tags", tkv.KeyLexForward, tkv.ValueLexForward, true)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		_, err := ct.Insert("a", []byte("red"))
		require.NoError(t, err)
		_, err = ct.Insert("a", []byte("blue"))
		require.NoError(t, err)

		existed, err := ct.DelValue("a", []byte("red"))
		require.NoError(t, err)
		require.True(t, existed)

		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	err = tkv.InSnapshot(db, coll, func(cs tkv.CollectionSnapshot) error {
		n, err := cs.EntryCount()
		require.NoError(t, err)
		require.Equal(t, uint64(1), n, "only the exact (key, value) pair should have been removed")
		return nil
	})
	require.NoError(t, err)
}

func TestPutWithFlagsInsertSoftRefusal(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		ok, err := ct.PutWithFlags("a", []byte("one"), tkv.FlagInsert)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = ct.PutWithFlags("a", []byte("two"), tkv.FlagInsert)
		require.NoError(t, err, "a flag-induced refusal must collapse to (false, nil), not an error")
		require.False(t, ok)

		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func TestChangeHookFiresOnPut(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "widgets", tkv.KeyLexForward, tkv.ValueOpaque, false)

	type event struct{ old, new []byte }
	var events []event
	coll.AddChangeHook(func(txnID uint64, key, oldValue, newValue []byte) error {
		events = append(events, event{old: append([]byte(nil), oldValue...), new: append([]byte(nil), newValue...)})
		return nil
	})

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		require.NoError(t, ct.Put("a", []byte("one")))
		require.NoError(t, ct.Put("a", []byte("two")))
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Nil(t, events[0].old)
	require.Equal(t, []byte("one"), events[0].new)
	require.Equal(t, []byte("one"), events[1].old)
	require.Equal(t, []byte("two"), events[1].new)
}

func TestPutDuplicatesNeverFiresHooks(t *testing.T) {
	db := openTestDB(t)
	coll := openTestCollection(t, db, "fixed", tkv.KeyLexForward, tkv.ValueFixedSize, true)

	fired := false
	coll.AddChangeHook(func(uint64, []byte, []byte, []byte) error {
		fired = true
		return nil
	})

	err := tkv.InTransaction(context.Background(), db, coll, func(ct tkv.CollectionTransaction) error {
		return ct.PutDuplicates("a", [][]byte{[]byte("xx"), []byte("yy")}, 0)
	})
	require.NoError(t, err)
	require.False(t, fired, "put_duplicates is documented to bypass change hooks")
}
