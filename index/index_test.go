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

package index_test

import (
	"context"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldbrewdb/tkv/index"
	"github.com/coldbrewdb/tkv/tkv"
)

// allKeyIndexer emits a single shared key for every value, so every
// document's composite value lands as a duplicate at the same index
// key, ordered only by the embedded source key.
func allKeyIndexer(value []byte, emit func(key, extra []byte)) {
	emit([]byte("all"), nil)
}

func TestOpenIndexRebuildsFromExistingData(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyLexForward, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	putDoc(t, db, docs, "d1", "red,blue")
	putDoc(t, db, docs, "d2", "blue,green")

	idx, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)

	snap, err := tkv.BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	keys := indexKeys(t, index.With(idx, snap))
	sort.Strings(keys)
	require.Equal(t, []string{"blue", "blue", "green", "red"}, keys, "rebuild must derive one entry per (doc, tag) pair already in docs")
}

func TestIndexTracksSubsequentChanges(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyLexForward, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	idx, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)

	putDoc(t, db, docs, "d1", "red")

	func() {
		snap, err := tkv.BeginSnapshot(db)
		require.NoError(t, err)
		defer snap.Finish()
		require.Equal(t, []string{"red"}, indexKeys(t, index.With(idx, snap)))
	}()

	// Changing d1's tags must retract "red" and add "blue" in the same hook.
	putDoc(t, db, docs, "d1", "blue")

	func() {
		snap, err := tkv.BeginSnapshot(db)
		require.NoError(t, err)
		defer snap.Finish()
		require.Equal(t, []string{"blue"}, indexKeys(t, index.With(idx, snap)))
	}()

	// Deleting d1 entirely must retract its last remaining emission.
	err = tkv.InTransaction(context.Background(), db, docs, func(ct tkv.CollectionTransaction) error {
		_, err := ct.Del("d1")
		if err != nil {
			return err
		}
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	func() {
		snap, err := tkv.BeginSnapshot(db)
		require.NoError(t, err)
		defer snap.Finish()
		require.Empty(t, indexKeys(t, index.With(idx, snap)))
	}()
}

func TestIndexIgnoresUnchangedValue(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyLexForward, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	idx, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)

	putDoc(t, db, docs, "d1", "red")
	putDoc(t, db, docs, "d1", "red") // identical value: onChange short-circuits on bytes.Equal

	snap, err := tkv.BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()
	require.Equal(t, []string{"red"}, indexKeys(t, index.With(idx, snap)), "re-writing an identical value must not duplicate the emission")
}

func TestDeleteIndexStopsTrackingChanges(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyLexForward, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	idx, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)
	putDoc(t, db, docs, "d1", "red")

	require.NoError(t, index.DeleteIndex(context.Background(), idx))

	// A mutation on docs after DeleteIndex must not panic or error even
	// though the index's change hook is still technically registered
	// (tombstoned by HookHandle.Remove, and skipped by fireHooks).
	putDoc(t, db, docs, "d2", "blue")
}

func TestIndexOrdersNativeIntSourceKeysUnsigned(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyNativeInt, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	// -1's native-endian bytes, read back unsigned (KeyNativeInt's own
	// comparator), are the largest possible uint64 key: it must sort
	// after 1, not before it as a signed reinterpretation would put it.
	err = tkv.InTransaction(context.Background(), db, docs, func(ct tkv.CollectionTransaction) error {
		if err := ct.Put(int64(1), []byte("x")); err != nil {
			return err
		}
		if err := ct.Put(int64(-1), []byte("y")); err != nil {
			return err
		}
		return ct.Txn().Commit()
	})
	require.NoError(t, err)

	idx, err := index.OpenIndex(context.Background(), docs, "by_all", allKeyIndexer)
	require.NoError(t, err)

	snap, err := tkv.BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	cs := index.With(idx, snap)
	cur, err := cs.NewCursor()
	require.NoError(t, err)
	defer cur.Close()

	require.NoError(t, cur.SeekExact("all"))
	require.True(t, cur.HasValue())

	var decoded []uint64
	for cur.HasValue() {
		vb, err := cur.Value().Bytes()
		require.NoError(t, err)
		require.Len(t, vb, 8, "composite value is just the embedded source key: no extra, no tag byte")
		decoded = append(decoded, binary.BigEndian.Uint64(vb))
		require.NoError(t, cur.NextDup())
	}
	require.Equal(t, []uint64{1, ^uint64(0)}, decoded, "embedded source keys must sort in KeyNativeInt's own unsigned order")
}

func TestDeleteIndexThenReopenRebuilds(t *testing.T) {
	db := openTestDB(t)
	docs, err := db.Collection("docs", tkv.KeyLexForward, tkv.ValueOpaque, false, true)
	require.NoError(t, err)

	idx, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)
	putDoc(t, db, docs, "d1", "red")

	require.NoError(t, index.DeleteIndex(context.Background(), idx))

	// d2 is written after the delete, with the old Index's hook
	// tombstoned, so it must not appear in the reopened index unless
	// rebuild re-derives it from docs.
	putDoc(t, db, docs, "d2", "green")

	idx2, err := index.OpenIndex(context.Background(), docs, "by_tag", byTag)
	require.NoError(t, err)

	snap, err := tkv.BeginSnapshot(db)
	require.NoError(t, err)
	defer snap.Finish()

	keys := indexKeys(t, index.With(idx2, snap))
	sort.Strings(keys)
	require.Equal(t, []string{"green", "red"}, keys, "reopening after DeleteIndex must recreate the backing table and rebuild from docs")
}
