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

import (
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
)

// Tx implements both kv.Tx and kv.RwTx; rw reports which.
type Tx struct {
	db  *DB
	txn *mdbx.Txn
	rw  bool
}

func (t *Tx) ID() uint64 { return t.txn.ID() }

func (t *Tx) resolve(table string) (mdbx.DBI, error) {
	if dbi, ok := t.db.dbi(table); ok {
		return dbi, nil
	}
	dbi, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return 0, errors.Wrapf(kv.ErrNotSupported, "table %q not open and not found", table)
		}
		return 0, errors.Wrapf(err, "mdbx: open table %s", table)
	}
	t.db.rememberDBI(table, dbi)
	return dbi, nil
}

func (t *Tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *Tx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "mdbx: get from %s", table)
	}
	return v, nil
}

func (t *Tx) SeekGE(table string, key []byte) (k, v []byte, err error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()
	return c.Seek(key)
}

func (t *Tx) Sequence(table string) (uint64, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return 0, err
	}
	v, err := t.txn.Sequence(dbi, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "mdbx: read sequence of %s", table)
	}
	return v, nil
}

func (t *Tx) BucketStat(table string) (kv.Stat, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return kv.Stat{}, err
	}
	st, err := t.txn.Stat(dbi)
	if err != nil {
		return kv.Stat{}, errors.Wrapf(err, "mdbx: stat %s", table)
	}
	return kv.Stat{
		PSize:         st.PSize,
		Depth:         st.Depth,
		BranchPages:   st.BranchPages,
		LeafPages:     st.LeafPages,
		OverflowPages: st.OverflowPages,
		Entries:       st.Entries,
	}, nil
}

func (t *Tx) Cursor(table string) (kv.Cursor, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, errors.Wrapf(err, "mdbx: open cursor on %s", table)
	}
	return &Cursor{txn: t.txn, c: c, table: table}, nil
}

func (t *Tx) CursorDupSort(table string) (kv.CursorDupSort, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return c.(*Cursor), nil
}

func (t *Tx) RwCursor(table string) (kv.RwCursor, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return c.(*Cursor), nil
}

func (t *Tx) RwCursorDupSort(table string) (kv.RwCursorDupSort, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return c.(*Cursor), nil
}

func putFlags(f kv.PutFlags) mdbx.PutFlags {
	var out mdbx.PutFlags
	if f&kv.NoOverwrite != 0 {
		out |= mdbx.NoOverwrite
	}
	if f&kv.Current != 0 {
		out |= mdbx.Current
	}
	if f&kv.Append != 0 {
		out |= mdbx.Append
	}
	if f&kv.NoDupData != 0 {
		out |= mdbx.NoDupData
	}
	if f&kv.Reserve != 0 {
		out |= mdbx.Reserve
	}
	if f&kv.Multiple != 0 {
		out |= mdbx.Multiple
	}
	return out
}

func (t *Tx) Put(table string, k, v []byte, flags kv.PutFlags) error {
	dbi, err := t.resolve(table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(dbi, k, v, putFlags(flags)); err != nil {
		return classifyWriteErr(err, "put", table)
	}
	return nil
}

func (t *Tx) PutReserve(table string, k []byte, n int, flags kv.PutFlags, fill func([]byte)) error {
	dbi, err := t.resolve(table)
	if err != nil {
		return err
	}
	buf, err := t.txn.PutReserve(dbi, k, n, putFlags(flags)|mdbx.Reserve)
	if err != nil {
		return classifyWriteErr(err, "put_reserve", table)
	}
	fill(buf)
	return nil
}

func (t *Tx) PutMultiple(table string, k []byte, values []byte, count int, flags kv.PutFlags) error {
	dbi, err := t.resolve(table)
	if err != nil {
		return err
	}
	if count <= 0 {
		return errors.New("mdbx: put_duplicates requires count > 0")
	}
	valLen := len(values) / count
	if valLen*count != len(values) {
		return errors.New("mdbx: put_duplicates values length is not a multiple of count")
	}
	if err := t.txn.PutMulti(dbi, k, values, valLen, putFlags(flags)|mdbx.Multiple); err != nil {
		return classifyWriteErr(err, "put_duplicates", table)
	}
	return nil
}

// Replace reads the previous value, reports it to old, and then upserts
// v, all within the same write transaction; this is why
// the CRUD layer routes through Replace instead of plain Put whenever
// a collection has a non-empty change-hook chain (§4.4).
func (t *Tx) Replace(table string, k, v []byte, old func([]byte)) (bool, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return false, err
	}
	prev, err := t.txn.Get(dbi, k)
	existed := err == nil
	if err != nil && !mdbx.IsNotFound(err) {
		return false, classifyWriteErr(err, "replace", table)
	}
	if existed && old != nil {
		old(prev)
	}
	if err := t.txn.Put(dbi, k, v, mdbx.Upsert); err != nil {
		return existed, classifyWriteErr(err, "replace", table)
	}
	return existed, nil
}

func (t *Tx) Del(table string, k, v []byte) (bool, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return false, err
	}
	err = t.txn.Del(dbi, k, v)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return false, nil
		}
		return false, classifyWriteErr(err, "del", table)
	}
	return true, nil
}

func (t *Tx) IncrementSequence(table string, amount uint64) (uint64, error) {
	dbi, err := t.resolve(table)
	if err != nil {
		return 0, err
	}
	v, err := t.txn.Sequence(dbi, amount)
	if err != nil {
		return 0, errors.Wrapf(err, "mdbx: increment sequence of %s", table)
	}
	return v, nil
}

func (t *Tx) CreateBucket(table string, flags kv.TableFlags) (bool, error) {
	dbi, created, err := t.txn.OpenDBICreate(table, mdbx.Create|dbiFlags(flags))
	if err != nil {
		if mdbx.IsIncompatible(err) {
			return false, errors.Wrapf(kv.ErrIncompatible, "mdbx: create table %s", table)
		}
		return false, errors.Wrapf(err, "mdbx: create table %s", table)
	}
	t.db.rememberDBI(table, dbi)
	return created, nil
}

func (t *Tx) DropBucket(table string, deleteAll bool) error {
	dbi, err := t.resolve(table)
	if err != nil {
		return err
	}
	if err := t.txn.Drop(dbi, !deleteAll); err != nil {
		return errors.Wrapf(err, "mdbx: drop table %s", table)
	}
	if !deleteAll {
		t.db.forgetDBI(table)
	}
	return nil
}

func (t *Tx) ExistsBucket(table string) (bool, error) {
	_, ok := t.db.dbi(table)
	if ok {
		return true, nil
	}
	_, err := t.txn.OpenDBI(table, 0, nil, nil)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *Tx) ListBuckets() ([]string, error) {
	return t.txn.ListDBI()
}

func (t *Tx) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return errors.Wrap(err, "mdbx: commit")
	}
	return nil
}

func (t *Tx) Abort() {
	t.txn.Abort()
}

// classifyWriteErr turns the soft, flag-conditioned mdbx failures
// (KeyExist, NotFound, dupsort/flag mismatch) into the unexported
// sentinel the tkv CRUD layer checks for with errors.Is; everything
// else is an opaque EngineErr (§7).
func classifyWriteErr(err error, op, table string) error {
	switch {
	case mdbx.IsKeyExist(err):
		return errKeyExist
	case mdbx.IsNotFound(err):
		return errNotFoundSoft
	case mdbx.IsIncompatible(err):
		return errMultipleValues
	default:
		return kv.NewEngineErr(op+" "+table, mdbx.ErrorCode(err), err)
	}
}

var (
	_ kv.Tx   = (*Tx)(nil)
	_ kv.RwTx = (*Tx)(nil)
)
