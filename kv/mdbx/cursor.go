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

	"github.com/coldbrewdb/tkv/kv"
)

// Cursor implements kv.Cursor, kv.RwCursor, kv.CursorDupSort and
// kv.RwCursorDupSort; which subset is valid depends on how the
// underlying table was opened, exactly as with the raw engine.
type Cursor struct {
	txn   *mdbx.Txn
	c     *mdbx.Cursor
	table string
}

func wrapGetErr(k, v []byte, err error) ([]byte, []byte, error) {
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return k, v, nil
}

func (c *Cursor) First() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.First))
}

func (c *Cursor) Seek(seek []byte) ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(seek, nil, mdbx.SetRange))
}

func (c *Cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(key, nil, mdbx.Set))
}

func (c *Cursor) Next() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.Next))
}

func (c *Cursor) Prev() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.Prev))
}

func (c *Cursor) Last() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.Last))
}

func (c *Cursor) Current() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.GetCurrent))
}

func (c *Cursor) Count() (uint64, error) {
	return c.c.Count()
}

func (c *Cursor) Close() { c.c.Close() }

func (c *Cursor) Put(k, v []byte) error {
	if err := c.c.Put(k, v, mdbx.Upsert); err != nil {
		return classifyWriteErr(err, "cursor put", c.table)
	}
	return nil
}

func (c *Cursor) Append(k, v []byte) error {
	if err := c.c.Put(k, v, mdbx.Append); err != nil {
		return classifyWriteErr(err, "cursor append", c.table)
	}
	return nil
}

func (c *Cursor) Delete(k []byte) error {
	if _, _, err := c.c.Get(k, nil, mdbx.Set); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return classifyWriteErr(err, "cursor delete", c.table)
	}
	return c.DeleteCurrent()
}

// DeleteCurrent deletes the entry the cursor is positioned on without
// repositioning it first. Like PutMultiple, this path never runs
// change hooks (§4.4 / SPEC_FULL.md §3): whoever calls it directly on
// a table with a registered hook is responsible for the index going
// stale, same as the documented put_duplicates limitation.
func (c *Cursor) DeleteCurrent() error {
	if err := c.c.Del(0); err != nil {
		return classifyWriteErr(err, "cursor delete current", c.table)
	}
	return nil
}

func (c *Cursor) SeekBothExact(key, value []byte) ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(key, value, mdbx.GetBoth))
}

func (c *Cursor) SeekBothRange(key, value []byte) ([]byte, error) {
	_, v, err := wrapGetErr(c.c.Get(key, value, mdbx.GetBothRange))
	return v, err
}

func (c *Cursor) FirstDup() ([]byte, error) {
	_, v, err := wrapGetErr(c.c.Get(nil, nil, mdbx.FirstDup))
	return v, err
}

func (c *Cursor) NextDup() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.NextDup))
}

func (c *Cursor) NextNoDup() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.NextNoDup))
}

func (c *Cursor) PrevDup() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.PrevDup))
}

func (c *Cursor) PrevNoDup() ([]byte, []byte, error) {
	return wrapGetErr(c.c.Get(nil, nil, mdbx.PrevNoDup))
}

func (c *Cursor) LastDup() ([]byte, error) {
	_, v, err := wrapGetErr(c.c.Get(nil, nil, mdbx.LastDup))
	return v, err
}

func (c *Cursor) CountDuplicates() (uint64, error) {
	return c.c.Count()
}

func (c *Cursor) PutNoDupData(key, value []byte) error {
	if err := c.c.Put(key, value, mdbx.NoDupData); err != nil {
		return classifyWriteErr(err, "cursor put no dup data", c.table)
	}
	return nil
}

func (c *Cursor) DeleteCurrentDuplicates() error {
	if err := c.c.Del(mdbx.AllDups); err != nil {
		return classifyWriteErr(err, "cursor delete current duplicates", c.table)
	}
	return nil
}

func (c *Cursor) DeleteExact(k, v []byte) error {
	if _, _, err := c.c.Get(k, v, mdbx.GetBoth); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return classifyWriteErr(err, "cursor delete exact", c.table)
	}
	return c.DeleteCurrent()
}

func (c *Cursor) AppendDup(key, value []byte) error {
	if err := c.c.Put(key, value, mdbx.AppendDup); err != nil {
		return classifyWriteErr(err, "cursor append dup", c.table)
	}
	return nil
}

var (
	_ kv.Cursor          = (*Cursor)(nil)
	_ kv.RwCursor        = (*Cursor)(nil)
	_ kv.CursorDupSort   = (*Cursor)(nil)
	_ kv.RwCursorDupSort = (*Cursor)(nil)
)
