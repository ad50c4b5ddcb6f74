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
	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
)

// noKey is the sentinel type for NoKey, denoting an open-ended bound on
// a Cursor's range (§4.5).
type noKey struct{}

// NoKey denotes an unset min_key/max_key bound.
var NoKey = noKey{}

// Cursor is a stateful, range-bounded iterator over a scoped snapshot
// (§3, §4.5). It borrows from the CollectionSnapshot (or
// CollectionTransaction) that made it and must not outlive it.
type Cursor struct {
	coll *Collection
	life *lifetime
	c    kv.Cursor

	minKey, maxKey     []byte
	hasMin, hasMax     bool
	skipMin, skipMax   bool

	curKey, curVal []byte
	positioned     bool
}

// CursorOption configures bounds when constructing a Cursor.
type CursorOption func(*Cursor)

// WithMinKey sets the inclusive (or exclusive, with WithSkipMin) lower
// bound.
func WithMinKey(key interface{}) CursorOption {
	return func(c *Cursor) {
		if _, ok := key.(noKey); ok {
			return
		}
		c.hasMin = true
		c.minKey, _ = encodeKey(c.coll.keySort, key)
	}
}

// WithMaxKey sets the inclusive (or exclusive, with WithSkipMax) upper
// bound.
func WithMaxKey(key interface{}) CursorOption {
	return func(c *Cursor) {
		if _, ok := key.(noKey); ok {
			return
		}
		c.hasMax = true
		c.maxKey, _ = encodeKey(c.coll.keySort, key)
	}
}

// WithSkipMin excludes min_key itself from the range.
func WithSkipMin() CursorOption { return func(c *Cursor) { c.skipMin = true } }

// WithSkipMax excludes max_key itself from the range.
func WithSkipMax() CursorOption { return func(c *Cursor) { c.skipMax = true } }

// NewCursor opens a bounded cursor over coll as seen by cs (§4.5).
func (cs CollectionSnapshot) NewCursor(opts ...CursorOption) (*Cursor, error) {
	raw, err := cs.tx.Cursor(cs.coll.name)
	if err != nil {
		return nil, err
	}
	cur := &Cursor{coll: cs.coll, life: cs.life, c: raw}
	for _, opt := range opts {
		opt(cur)
	}
	return cur, nil
}

// Close releases the cursor's engine resources. It does not end the
// underlying snapshot/transaction.
func (c *Cursor) Close() {
	if c.c != nil {
		c.c.Close()
		c.c = nil
	}
}

func (c *Cursor) cmp(a, b []byte) int { return compareKeys(c.coll.keySort, a, b) }

func (c *Cursor) clear() {
	c.curKey, c.curVal = nil, nil
	c.positioned = false
}

func (c *Cursor) setCurrent(k, v []byte) {
	c.curKey, c.curVal = k, v
	c.positioned = k != nil
}

func (c *Cursor) checkBounds() {
	if !c.positioned {
		return
	}
	if c.hasMin {
		if d := c.cmp(c.curKey, c.minKey); d < 0 || (d == 0 && c.skipMin) {
			c.clear()
			return
		}
	}
	if c.hasMax {
		if d := c.cmp(c.curKey, c.maxKey); d > 0 || (d == 0 && c.skipMax) {
			c.clear()
		}
	}
}

// Seek moves to the smallest key >= key (§4.5).
func (c *Cursor) Seek(key interface{}) error {
	k, err := encodeKey(c.coll.keySort, key)
	if err != nil {
		return err
	}
	gk, gv, err := c.c.Seek(k)
	if err != nil {
		return err
	}
	c.setCurrent(gk, gv)
	c.checkBounds()
	return nil
}

// SeekExact moves to key = key, clearing the position if absent (§4.5).
func (c *Cursor) SeekExact(key interface{}) error {
	k, err := encodeKey(c.coll.keySort, key)
	if err != nil {
		return err
	}
	gk, gv, err := c.c.SeekExact(k)
	if err != nil {
		return err
	}
	c.setCurrent(gk, gv)
	c.checkBounds()
	return nil
}

// First moves to the range's first entry: to min_key (stepping past it
// if skip_min and it matched exactly) when set, else to the
// collection's absolute first (§4.5).
func (c *Cursor) First() error {
	if !c.hasMin {
		k, v, err := c.c.First()
		if err != nil {
			return err
		}
		c.setCurrent(k, v)
		c.checkBounds()
		return nil
	}
	k, v, err := c.c.Seek(c.minKey)
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	for c.skipMin && c.positioned && c.cmp(c.curKey, c.minKey) == 0 {
		nk, nv, err := c.c.Next()
		if err != nil {
			return err
		}
		c.setCurrent(nk, nv)
	}
	c.checkBounds()
	return nil
}

// Last moves to the range's last entry: to max_key (stepping back past
// it, or onto it, depending on whether the seek overshot and skip_max)
// when set, else to the collection's absolute last (§4.5).
func (c *Cursor) Last() error {
	if !c.hasMax {
		k, v, err := c.c.Last()
		if err != nil {
			return err
		}
		c.setCurrent(k, v)
		c.checkBounds()
		return nil
	}
	k, v, err := c.c.Seek(c.maxKey)
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	switch {
	case !c.positioned:
		// max_key is past every key: land on the absolute last instead.
		lk, lv, err := c.c.Last()
		if err != nil {
			return err
		}
		c.setCurrent(lk, lv)
	case c.cmp(c.curKey, c.maxKey) != 0:
		// Seek overshot because max_key itself is absent: step back.
		pk, pv, err := c.c.Prev()
		if err != nil {
			return err
		}
		c.setCurrent(pk, pv)
	case c.skipMax:
		pk, pv, err := c.c.Prev()
		if err != nil {
			return err
		}
		c.setCurrent(pk, pv)
	}
	c.checkBounds()
	return nil
}

// Next steps forward; from unpositioned it behaves as First (§4.5).
func (c *Cursor) Next() error {
	if !c.positioned {
		return c.First()
	}
	k, v, err := c.c.Next()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

// Prev steps backward; from unpositioned it behaves as Last (§4.5).
func (c *Cursor) Prev() error {
	if !c.positioned {
		return c.Last()
	}
	k, v, err := c.c.Prev()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

func (c *Cursor) dupCursor() (kv.CursorDupSort, bool) {
	dc, ok := c.c.(kv.CursorDupSort)
	return dc, ok
}

// NextKey steps to the next distinct key, skipping over any remaining
// duplicates of the current one (§4.5).
func (c *Cursor) NextKey() error {
	dc, ok := c.dupCursor()
	if !ok {
		return c.Next()
	}
	if !c.positioned {
		return c.First()
	}
	k, v, err := dc.NextNoDup()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

// PrevKey steps to the previous distinct key (§4.5).
func (c *Cursor) PrevKey() error {
	dc, ok := c.dupCursor()
	if !ok {
		return c.Prev()
	}
	if !c.positioned {
		return c.Last()
	}
	k, v, err := dc.PrevNoDup()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

// NextDup moves within the current key's duplicate values, clearing the
// position if there is no next duplicate (§4.5).
func (c *Cursor) NextDup() error {
	dc, ok := c.dupCursor()
	if !ok || !c.positioned {
		c.clear()
		return nil
	}
	k, v, err := dc.NextDup()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

// PrevDup moves to the current key's previous duplicate value (§4.5).
func (c *Cursor) PrevDup() error {
	dc, ok := c.dupCursor()
	if !ok || !c.positioned {
		c.clear()
		return nil
	}
	k, v, err := dc.PrevDup()
	if err != nil {
		return err
	}
	c.setCurrent(k, v)
	c.checkBounds()
	return nil
}

// DeleteCurrent deletes the entry at the cursor's current position,
// requiring a cursor opened from a CollectionTransaction. It writes
// through the engine's cursor primitive directly and so, like
// PutDuplicates, never invokes change hooks — callers indexing a
// collection that uses direct cursor deletes must rebuild the index
// afterward (§4.6 "Known limitations").
func (c *Cursor) DeleteCurrent() error {
	if !c.positioned {
		return errors.New("tkv: cursor is not positioned")
	}
	rc, ok := c.c.(kv.RwCursor)
	if !ok {
		return errors.New("tkv: cursor is read-only")
	}
	if err := rc.DeleteCurrent(); err != nil {
		return err
	}
	c.clear()
	return nil
}

// Key returns the current position's key, a lifetime-tied view
// (§4.5).
func (c *Cursor) Key() KeyView {
	if !c.positioned {
		return ValueView{}
	}
	return newValueView(c.curKey, c.life)
}

// Value returns the current position's value (§4.5).
func (c *Cursor) Value() ValueView {
	if !c.positioned {
		return ValueView{}
	}
	return newValueView(c.curVal, c.life)
}

// ValueLen returns len(Value()) without materializing a view.
func (c *Cursor) ValueLen() int { return len(c.curVal) }

// HasValue reports whether the cursor is currently positioned on an
// entry.
func (c *Cursor) HasValue() bool { return c.positioned }

// ValueCount returns the number of duplicate values at the current key
// (1 for a non-dup collection, §4.5).
func (c *Cursor) ValueCount() (uint64, error) {
	if !c.positioned {
		return 0, nil
	}
	if dc, ok := c.dupCursor(); ok {
		return dc.CountDuplicates()
	}
	return 1, nil
}

// OnFirst reports whether the cursor sits on the range's first entry
// (§4.5): the bounded position Cursor.First would land on, not the
// collection's absolute first key.
func (c *Cursor) OnFirst() (bool, error) {
	return c.onBoundary(c.First)
}

// OnLast reports whether the cursor sits on the range's last entry
// (§4.5): the bounded position Cursor.Last would land on, not the
// collection's absolute last key.
func (c *Cursor) OnLast() (bool, error) {
	return c.onBoundary(c.Last)
}

// onBoundary runs move (First or Last) to find the range's bounded
// boundary key, compares it against the cursor's current position, then
// restores that position before returning.
func (c *Cursor) onBoundary(move func() error) (bool, error) {
	if !c.positioned {
		return false, nil
	}
	savedKey, savedVal := c.curKey, c.curVal
	if err := move(); err != nil {
		return false, err
	}
	onBoundary := c.positioned && c.cmp(c.curKey, savedKey) == 0
	if _, _, err := c.c.Seek(savedKey); err != nil {
		return false, err
	}
	c.curKey, c.curVal, c.positioned = savedKey, savedVal, true
	return onBoundary, nil
}

// CompareKey compares the cursor's current key against other using the
// collection's own key comparator, not a raw byte compare (§4.5).
func (c *Cursor) CompareKey(other interface{}) (int, error) {
	ok, err := encodeKey(c.coll.keySort, other)
	if err != nil {
		return 0, err
	}
	return c.cmp(c.curKey, ok), nil
}

// Pairs iterates every (key, value) in range, forward, opening and
// closing its own cursor (§4.5).
func (cs CollectionSnapshot) Pairs(opts ...CursorOption) func(yield func(KeyView, ValueView) bool) {
	return func(yield func(KeyView, ValueView) bool) {
		c, err := cs.NewCursor(opts...)
		if err != nil {
			return
		}
		defer c.Close()
		for err = c.First(); err == nil && c.HasValue(); err = c.Next() {
			if !yield(c.Key(), c.Value()) {
				return
			}
		}
	}
}

// PairsReversed is Pairs in reverse key order (§4.5).
func (cs CollectionSnapshot) PairsReversed(opts ...CursorOption) func(yield func(KeyView, ValueView) bool) {
	return func(yield func(KeyView, ValueView) bool) {
		c, err := cs.NewCursor(opts...)
		if err != nil {
			return
		}
		defer c.Close()
		for err = c.Last(); err == nil && c.HasValue(); err = c.Prev() {
			if !yield(c.Key(), c.Value()) {
				return
			}
		}
	}
}

// Range builds the CursorOption pair for a range-subscript bound
// min..max (either may be NoKey for an open end, §4.5).
func Range(min, max interface{}) []CursorOption {
	return []CursorOption{WithMinKey(min), WithMaxKey(max)}
}
