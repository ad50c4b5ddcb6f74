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
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
	kvmdbx "github.com/coldbrewdb/tkv/kv/mdbx"
)

// PutFlag is the typed flag vocabulary for PutWithFlags (§4.4). Exactly
// one of Insert/Update/Append should select the "where" behavior;
// AllDups/NoDupData/AppendDup compose with it for dup-sort collections.
type PutFlag uint

const (
	FlagInsert PutFlag = 1 << iota
	FlagUpdate
	FlagAppend
	FlagAllDups
	FlagNoDupData
	FlagAppendDup
)

func toEngineFlags(f PutFlag) kv.PutFlags {
	var out kv.PutFlags
	if f&FlagInsert != 0 {
		out |= kv.NoOverwrite
	}
	if f&FlagUpdate != 0 {
		out |= kv.Current
	}
	if f&FlagAppend != 0 {
		out |= kv.Append
	}
	if f&FlagAllDups != 0 {
		out |= kv.AllDups
	}
	if f&FlagNoDupData != 0 {
		out |= kv.NoDupData
	}
	if f&FlagAppendDup != 0 {
		out |= kv.AppendDup
	}
	return out
}

func isSoftWriteErr(err error) bool {
	return kvmdbx.IsKeyExist(err) || kvmdbx.IsNotFoundSoft(err) || kvmdbx.IsMultipleValues(err)
}

// Get returns the zero-copy value at key, or a nil ValueView on miss
// (§4.4).
func (cs CollectionSnapshot) Get(key interface{}) (ValueView, error) {
	k, err := encodeKey(cs.coll.keySort, key)
	if err != nil {
		return ValueView{}, err
	}
	v, err := cs.tx.GetOne(cs.coll.name, k)
	if err != nil {
		return ValueView{}, err
	}
	return newValueView(v, cs.life), nil
}

// GetFunc calls cb with the value's bytes, zero-copy, if key is
// present, and reports whether it was.
func (cs CollectionSnapshot) GetFunc(key interface{}, cb func([]byte)) (bool, error) {
	k, err := encodeKey(cs.coll.keySort, key)
	if err != nil {
		return false, err
	}
	v, err := cs.tx.GetOne(cs.coll.name, k)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	cb(v)
	return true, nil
}

// GetGreaterOrEqual returns the smallest key >= key and its value, both
// empty views on miss (§4.4).
func (cs CollectionSnapshot) GetGreaterOrEqual(key interface{}) (KeyView, ValueView, error) {
	k, err := encodeKey(cs.coll.keySort, key)
	if err != nil {
		return ValueView{}, ValueView{}, err
	}
	gk, gv, err := cs.tx.SeekGE(cs.coll.name, k)
	if err != nil {
		return ValueView{}, ValueView{}, err
	}
	if gk == nil {
		return ValueView{}, ValueView{}, nil
	}
	return newValueView(gk, cs.life), newValueView(gv, cs.life), nil
}

// putUpsert writes k=v unconditionally. When the collection has live
// change hooks, it routes through the engine's replace primitive so the
// previous value can be reported (§4.4 "Write path detail").
func (ct CollectionTransaction) putUpsert(k, v []byte) error {
	if !ct.coll.hasLiveHooks() {
		return ct.rw().Put(ct.coll.name, k, v, kv.Upsert)
	}
	var old []byte
	_, err := ct.rw().Replace(ct.coll.name, k, v, func(prev []byte) {
		old = append([]byte(nil), prev...)
	})
	if err != nil {
		return err
	}
	ct.coll.fireHooks(ct.txn.ID(), k, old, v)
	return nil
}

// putInsert writes k=v only if absent (or, for dup-sort collections,
// only if the exact pair is absent). The presence check it relies on
// guarantees there is no pre-existing value, so it stays on plain Put
// rather than Replace (§4.4 "Write path detail").
func (ct CollectionTransaction) putInsert(k, v []byte) (bool, error) {
	flag := kv.NoOverwrite
	if ct.coll.allowDup {
		flag = kv.NoDupData
	}
	err := ct.rw().Put(ct.coll.name, k, v, flag)
	switch {
	case err == nil:
		if ct.coll.hasLiveHooks() {
			ct.coll.fireHooks(ct.txn.ID(), k, nil, v)
		}
		return true, nil
	case isSoftWriteErr(err):
		return false, nil
	default:
		return false, err
	}
}

// putUpdate replaces k's value only if k is already present. The
// engine's replace primitive always upserts, so when k turns out to be
// absent the accidental insert is undone before returning — the
// transaction never observably gains a new key from an Update call.
func (ct CollectionTransaction) putUpdate(k, v []byte) (old []byte, existed bool, err error) {
	existed, err = ct.rw().Replace(ct.coll.name, k, v, func(prev []byte) {
		old = append([]byte(nil), prev...)
	})
	if err != nil {
		return nil, false, err
	}
	if !existed {
		if _, derr := ct.rw().Del(ct.coll.name, k, nil); derr != nil {
			return nil, false, derr
		}
		return nil, false, nil
	}
	if ct.coll.hasLiveHooks() {
		ct.coll.fireHooks(ct.txn.ID(), k, old, v)
	}
	return old, true, nil
}

func compareKeys(sort KeySort, a, b []byte) int {
	switch sort {
	case KeyNativeInt:
		return compareNativeUint(a, b)
	case KeyLexReverse:
		return bytes.Compare(b, a)
	default:
		return bytes.Compare(a, b)
	}
}

func compareNativeUint(a, b []byte) int {
	av, bv := decodeNativeUint(a), decodeNativeUint(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

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

// putAppend writes k=v after checking, with the collection's own key
// ordering, that k is strictly greater than the collection's current
// last key (§4.4). The check is done here rather than trusted to the
// engine's Append flag so the failure is reported as ErrKeyMismatch
// regardless of how the engine binding classifies its own error.
func (ct CollectionTransaction) putAppend(k, v []byte) error {
	c, err := ct.rw().Cursor(ct.coll.name)
	if err != nil {
		return err
	}
	lastKey, _, err := c.Last()
	c.Close()
	if err != nil {
		return err
	}
	if lastKey != nil && compareKeys(ct.coll.keySort, k, lastKey) <= 0 {
		return kv.ErrKeyMismatch
	}
	if err := ct.rw().Put(ct.coll.name, k, v, kv.Append); err != nil {
		return err
	}
	if ct.coll.hasLiveHooks() {
		ct.coll.fireHooks(ct.txn.ID(), k, nil, v)
	}
	return nil
}

// delKey deletes k (or the exact (k, v) pair if v is non-nil),
// returning the deleted value (nil if absent) for callers that need it
// (DelAndGet) and dispatching the change hook when one is registered.
// When v is non-nil the reported old value is v, the exact pair that
// was removed; otherwise it is the value read for k before the delete
// (for a dup-sort collection, the key's first duplicate).
func (ct CollectionTransaction) delKey(k, v []byte) (old []byte, existed bool, err error) {
	prev, err := ct.tx.GetOne(ct.coll.name, k)
	if err != nil {
		return nil, false, err
	}
	existed, err = ct.rw().Del(ct.coll.name, k, v)
	if err != nil {
		return nil, false, err
	}
	if !existed {
		return nil, false, nil
	}
	if v != nil {
		prev = v
	}
	old = append([]byte(nil), prev...)
	if ct.coll.hasLiveHooks() {
		ct.coll.fireHooks(ct.txn.ID(), k, old, nil)
	}
	return old, true, nil
}

// Put upserts key=value; if value is NoData (or nil), key is deleted
// instead (§4.4).
func (ct CollectionTransaction) Put(key, value interface{}) error {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return err
	}
	if isDelete {
		_, _, err := ct.delKey(k, nil)
		return err
	}
	return ct.putUpsert(k, v)
}

// Insert writes key=value only if absent, returning false (not an
// error) if it was already present (§4.4).
func (ct CollectionTransaction) Insert(key, value interface{}) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return false, err
	}
	if isDelete {
		return false, errors.New("tkv: insert requires a value")
	}
	return ct.putInsert(k, v)
}

// Update replaces key's value only if present, returning false if
// absent (§4.4).
func (ct CollectionTransaction) Update(key, value interface{}) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return false, err
	}
	if isDelete {
		return false, errors.New("tkv: update requires a value")
	}
	_, existed, err := ct.putUpdate(k, v)
	return existed, err
}

// UpdateAndGet is Update, additionally returning the owned previous
// value (nil if key was absent, in which case no write happened).
func (ct CollectionTransaction) UpdateAndGet(key, value interface{}) ([]byte, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return nil, err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return nil, err
	}
	if isDelete {
		return nil, errors.New("tkv: update_and_get requires a value")
	}
	old, _, err := ct.putUpdate(k, v)
	return old, err
}

// Append writes key=value, requiring key be strictly greater than
// every key currently in the collection; otherwise ErrKeyMismatch
// (§4.4).
func (ct CollectionTransaction) Append(key, value interface{}) error {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return err
	}
	if isDelete {
		return errors.New("tkv: append requires a value")
	}
	return ct.putAppend(k, v)
}

// PutWithFlags is the general write-with-flags primitive (§4.4): exactly
// one of FlagInsert/FlagUpdate/FlagAppend should be set to select the
// "where" behavior; it returns false (not an error) for the flag-
// induced soft refusals (KeyExist, NotFound, MultipleValues).
// ErrKeyMismatch from FlagAppend still propagates as an error.
func (ct CollectionTransaction) PutWithFlags(key, value interface{}, flags PutFlag) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return false, err
	}
	if isDelete {
		return false, errors.New("tkv: put requires a value; use Del for deletion")
	}

	switch {
	case flags&FlagAppend != 0:
		if err := ct.putAppend(k, v); err != nil {
			return false, err
		}
		return true, nil
	case flags&FlagInsert != 0:
		return ct.putInsert(k, v)
	case flags&FlagUpdate != 0:
		_, existed, err := ct.putUpdate(k, v)
		return existed, err
	default:
		if flags&FlagAppendDup != 0 || flags&FlagNoDupData != 0 {
			err := ct.rw().Put(ct.coll.name, k, v, toEngineFlags(flags))
			if err != nil {
				if isSoftWriteErr(err) {
					return false, nil
				}
				return false, err
			}
			if ct.coll.hasLiveHooks() {
				ct.coll.fireHooks(ct.txn.ID(), k, nil, v)
			}
			return true, nil
		}
		return true, ct.putUpsert(k, v)
	}
}

// PutReserve lets the engine allocate the value's storage and hands it
// to fill for in-place writing, emitting a change-hook notification on
// success (§4.4).
func (ct CollectionTransaction) PutReserve(key interface{}, n int, flags PutFlag, fill func([]byte)) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}

	var oldCopy []byte
	hasHooks := ct.coll.hasLiveHooks()
	if hasHooks {
		prev, gerr := ct.tx.GetOne(ct.coll.name, k)
		if gerr != nil {
			return false, gerr
		}
		oldCopy = append([]byte(nil), prev...)
	}

	var written []byte
	err = ct.rw().PutReserve(ct.coll.name, k, n, toEngineFlags(flags), func(buf []byte) {
		fill(buf)
		written = append([]byte(nil), buf...)
	})
	if err != nil {
		if isSoftWriteErr(err) {
			return false, nil
		}
		return false, err
	}
	if hasHooks {
		ct.coll.fireHooks(ct.txn.ID(), k, oldCopy, written)
	}
	return true, nil
}

// PutDuplicates bulk-inserts equal-length values under one key into a
// dup-fixed collection. It never fires change hooks — a documented
// limitation (§4.4, SPEC_FULL.md §3), because the engine's multi-value
// put primitive doesn't report per-value before/after state to derive
// notifications from.
func (ct CollectionTransaction) PutDuplicates(key interface{}, values [][]byte, flags PutFlag) error {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.New("tkv: put_duplicates requires at least one value")
	}
	valLen := len(values[0])
	buf := make([]byte, 0, valLen*len(values))
	for _, v := range values {
		if len(v) != valLen {
			return errors.New("tkv: put_duplicates requires equal-length values")
		}
		buf = append(buf, v...)
	}
	return ct.rw().PutMultiple(ct.coll.name, k, buf, len(values), toEngineFlags(flags))
}

// Del deletes every value at key, returning whether it existed (§4.4).
func (ct CollectionTransaction) Del(key interface{}) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}
	_, existed, err := ct.delKey(k, nil)
	return existed, err
}

// DelValue deletes only the exact (key, value) pair, for dup-sort
// collections (§4.4).
func (ct CollectionTransaction) DelValue(key, value interface{}) (bool, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return false, err
	}
	v, isDelete, err := encodeValue(ct.coll.valueSort, value)
	if err != nil {
		return false, err
	}
	if isDelete {
		return false, errors.New("tkv: del value must not be NoData")
	}
	_, existed, err := ct.delKey(k, v)
	return existed, err
}

// DelAndGet deletes key, returning its owned previous value (nil if
// absent, §4.4).
func (ct CollectionTransaction) DelAndGet(key interface{}) ([]byte, error) {
	k, err := encodeKey(ct.coll.keySort, key)
	if err != nil {
		return nil, err
	}
	old, _, err := ct.delKey(k, nil)
	return old, err
}
