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
	"encoding/binary"
	"sync/atomic"

	"github.com/coldbrewdb/tkv/kv"
)

// lifetime is shared by a Snapshot/Transaction and every ValueView it
// has handed out. Go has no borrow checker, so §9's "runtime generation
// counter" design is implemented directly: id is assigned once at
// begin_*, finished flips exactly once at finish/commit/abort, and
// every ValueView dereference checks it.
type lifetime struct {
	id       uint64
	finished atomic.Bool
}

func (l *lifetime) checkLive() error {
	if l == nil {
		return nil
	}
	if l.finished.Load() {
		return kv.ErrUseAfterFinish
	}
	return nil
}

// ValueView is an untyped (pointer, length) view into memory mapped by
// the engine, valid only until its originating Snapshot or Transaction
// finishes (§3 "Value view"). It is not copy-safe across that boundary:
// retaining the byte slice from Bytes() past Finish/Commit/Abort reads
// memory the engine may have already reused.
type ValueView struct {
	data []byte
	life *lifetime
}

func newValueView(data []byte, life *lifetime) ValueView {
	return ValueView{data: data, life: life}
}

// IsNil reports whether this view represents a miss (e.g. Get on an
// absent key), as opposed to a present, possibly zero-length, value.
func (v ValueView) IsNil() bool { return v.data == nil }

// Len returns the view's byte length without a liveness check, mirroring
// the source's value_len() (cheap, doesn't dereference mapped memory).
func (v ValueView) Len() int { return len(v.data) }

// Bytes returns the zero-copy slice. The slice aliases mapped memory and
// must not be retained past the owning snapshot/transaction's lifetime.
func (v ValueView) Bytes() ([]byte, error) {
	if err := v.life.checkLive(); err != nil {
		return nil, err
	}
	return v.data, nil
}

// Owned returns an owned copy of the view's bytes, safe to retain past
// the view's lifetime (used for e.g. update_and_get's returned old
// value, §4.4).
func (v ValueView) Owned() ([]byte, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// String decodes the view as UTF-8 text.
func (v ValueView) String() (string, error) {
	b, err := v.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Int32 decodes the view as a native-endian 32-bit integer. Returns
// ErrBadValueSize if the view is not exactly 4 bytes.
func (v ValueView) Int32() (int32, error) {
	b, err := v.Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, kv.ErrBadValueSize
	}
	return int32(binary.NativeEndian.Uint32(b)), nil
}

// Int64 decodes the view as a native-endian 64-bit integer. Returns
// ErrBadValueSize if the view is not exactly 8 bytes.
func (v ValueView) Int64() (int64, error) {
	b, err := v.Bytes()
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, kv.ErrBadValueSize
	}
	return int64(binary.NativeEndian.Uint64(b)), nil
}

// KeyView is an alias for ValueView: get_greater_or_equal (§4.4) returns
// one of each, and both have identical lifetime and conversion rules.
type KeyView = ValueView
