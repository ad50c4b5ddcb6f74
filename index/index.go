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

// Package index is the secondary-index subsystem: a derived collection
// keyed by Collatable-encoded emissions from a user Indexer run over a
// source collection, kept current by a change hook (§4.6). It is built
// entirely on package tkv's public surface — no special-cased access to
// its internals.
package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/collate"
	"github.com/coldbrewdb/tkv/tkv"
)

// Indexer computes, for one source value, the set of (key, extra) pairs
// to emit into the index (§4.6). It must be repeatable: the same value
// must always produce the same emissions — violating that corrupts the
// index, and is not a recoverable condition.
type Indexer func(value []byte, emit func(key, extra []byte))

// Index is a derived collection, keyed by the emissions an Indexer
// produces from a source collection's values, with each index entry's
// value holding the emitted extra bytes followed by the encoded source
// key (§4.6). A change hook registered on the source keeps it current.
type Index struct {
	source *tkv.Collection
	coll   *tkv.Collection
	name   string

	mu      sync.RWMutex
	indexer Indexer // nil once DeleteIndex has run

	hook    *tkv.HookHandle
	metrics *indexMetrics
}

func backingName(source *tkv.Collection, name string) string {
	return "index::" + source.Name() + "::" + name
}

// OpenIndex opens or creates the index named name over source (§4.6).
// If the backing collection did not already exist, it is rebuilt from
// every entry currently in source before the change hook is installed.
func OpenIndex(ctx context.Context, source *tkv.Collection, name string, indexer Indexer) (*Index, error) {
	db := source.Database()
	coll, err := db.Collection(backingName(source, name), tkv.KeyLexForward, tkv.ValueLexForward, true, true)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		source:  source,
		coll:    coll,
		name:    name,
		indexer: indexer,
		metrics: newIndexMetrics(source.Name(), name),
	}

	if !coll.Initialized() {
		if err := idx.rebuild(ctx); err != nil {
			return nil, err
		}
	}

	idx.hook = source.AddChangeHook(idx.onChange)
	return idx, nil
}

// encodeSourceKey shapes a raw source key into the encoded form §4.6
// says is appended to every index entry's value: an order-preserving
// unsigned integer encoding when the source orders its keys as native
// integers, a collatable string otherwise. This guarantees the index's
// composite value sorts in a well-defined, decodable order.
//
// The native-int case decodes rawKey the same unsigned way
// tkv's own compareNativeUint does (KeyNativeInt's comparator never
// treats the top bit as a sign bit), then uses collate.AppendUint64
// rather than AddI64: AddI64 is signed, so a key with the top bit set
// would round-trip as negative and sort before every smaller,
// non-negative key — the opposite of KeyNativeInt's own order.
func encodeSourceKey(source *tkv.Collection, rawKey []byte) []byte {
	if source.KeySort() == tkv.KeyNativeInt {
		return collate.AppendUint64(nil, decodeNativeUint(rawKey))
	}
	return collate.New().AddBytes(rawKey).Bytes()
}

// decodeNativeUint mirrors tkv's unexported helper of the same name
// (tkv/crud.go): a KeyNativeInt key is always compared as unsigned.
func decodeNativeUint(b []byte) uint64 {
	switch len(b) {
	case 4:
		return uint64(binary.NativeEndian.Uint32(b))
	case 8:
		return binary.NativeEndian.Uint64(b)
	default:
		return 0
	}
}

// rebuild clears the index and re-derives it from every entry currently
// in source (§4.6 "rebuilds from the source").
func (idx *Index) rebuild(ctx context.Context) error {
	return tkv.InTransaction(ctx, idx.source.Database(), idx.source, func(srcTxn tkv.CollectionTransaction) error {
		idxTxn := tkv.WithTxn(idx.coll, srcTxn.Txn())
		if err := idxTxn.DelAll(); err != nil {
			return err
		}

		var rebuildErr error
		for k, v := range srcTxn.Pairs() {
			sk, err := k.Bytes()
			if err != nil {
				rebuildErr = err
				break
			}
			sv, err := v.Bytes()
			if err != nil {
				rebuildErr = err
				break
			}
			encodedSrcKey := encodeSourceKey(idx.source, sk)
			idx.indexer(sv, func(ek, extra []byte) {
				if rebuildErr != nil {
					return
				}
				composite := append(append([]byte(nil), extra...), encodedSrcKey...)
				if err := idxTxn.Put(ek, composite); err != nil {
					rebuildErr = err
				}
			})
			if rebuildErr != nil {
				break
			}
		}
		if rebuildErr != nil {
			return rebuildErr
		}
		return srcTxn.Txn().Commit()
	})
}

// emission is one (index_key, composite_value) pair an Indexer produced
// for a single source value.
type emission struct {
	key       []byte
	composite []byte
}

// emitSet runs indexer over value (a no-op returning an empty set if
// value is nil, representing an absent insert/delete side) and collects
// its emissions keyed by (emitted key, extra) for the diff in onChange.
// Two emissions with identical (key, extra) collapse to one entry: the
// index tracks the set of emitted pairs, not a multiset with repeat
// counts.
func emitSet(indexer Indexer, value, encodedSrcKey []byte) map[string]emission {
	out := map[string]emission{}
	if value == nil {
		return out
	}
	indexer(value, func(ek, extra []byte) {
		dedupKey := string(ek) + "\x00" + string(extra)
		composite := append(append([]byte(nil), extra...), encodedSrcKey...)
		out[dedupKey] = emission{key: append([]byte(nil), ek...), composite: composite}
	})
	return out
}

// onChange is the change hook registered on source: the update-on-write
// algorithm of §4.6.
func (idx *Index) onChange(txnID uint64, key, oldValue, newValue []byte) error {
	idx.mu.RLock()
	indexer := idx.indexer
	idx.mu.RUnlock()
	if indexer == nil {
		// The index was deleted; DeleteIndex already tombstoned this
		// hook, but a fireHooks call already mid-iteration at the
		// moment of the race may still land here once more.
		return nil
	}
	if bytes.Equal(oldValue, newValue) {
		return nil
	}

	txn, ok := idx.source.Database().RecoverTransaction(txnID)
	if !ok {
		return errors.Errorf("index: cannot recover transaction %d", txnID)
	}
	idxTxn := tkv.WithTxn(idx.coll, txn)

	encodedSrcKey := encodeSourceKey(idx.source, key)
	oldSet := emitSet(indexer, oldValue, encodedSrcKey)
	newSet := emitSet(indexer, newValue, encodedSrcKey)

	modified := false
	for k, e := range oldSet {
		if _, stillEmitted := newSet[k]; !stillEmitted {
			if _, err := idxTxn.DelValue(e.key, e.composite); err != nil {
				return err
			}
			modified = true
		}
	}
	for k, e := range newSet {
		if _, alreadyEmitted := oldSet[k]; !alreadyEmitted {
			if err := idxTxn.Put(e.key, e.composite); err != nil {
				return err
			}
			modified = true
		}
	}
	if modified {
		idx.metrics.updateTotal.Inc()
	}
	return nil
}

// With exposes idx as a regular collection-snapshot (§4.6): its keys
// are the emitted collatable values, its values are the composite
// emitted-extra-followed-by-encoded-source-key bytes.
func With(idx *Index, snap *tkv.Snapshot) tkv.CollectionSnapshot {
	return tkv.With(idx.coll, snap)
}

// DeleteIndex clears idx's indexer (breaking the change hook) and drops
// its backing collection in a fresh transaction (§4.6).
func DeleteIndex(ctx context.Context, idx *Index) error {
	idx.mu.Lock()
	idx.indexer = nil
	idx.mu.Unlock()
	if idx.hook != nil {
		idx.hook.Remove()
	}
	return tkv.InTransaction(ctx, idx.source.Database(), idx.coll, func(ct tkv.CollectionTransaction) error {
		if err := ct.DeleteCollection(); err != nil {
			return err
		}
		return ct.Txn().Commit()
	})
}
