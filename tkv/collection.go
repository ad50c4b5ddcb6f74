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
	"sync"
	"sync/atomic"

	"github.com/coldbrewdb/tkv/kv"
)

// KeySort is a collection's key ordering (§3).
type KeySort int

const (
	KeyLexForward KeySort = iota
	KeyLexReverse
	KeyNativeInt
)

// ValueSort is a collection's value ordering and representation (§3).
// Only ValueOpaque is valid for a collection with allow_duplicates
// unset; every other kind requires it set.
type ValueSort int

const (
	ValueOpaque ValueSort = iota
	ValueLexForward
	ValueLexReverse
	ValueFixedSize
	ValueNativeInt
)

// ChangeHook observes a single-entry mutation. txnID is the raw engine
// transaction id the mutation happened in; recover the owning
// *Transaction with Database.RecoverTransaction (§9 "Txn↔owner
// recovery"). oldValue is nil for inserts, newValue is nil for deletes.
type ChangeHook func(txnID uint64, key, oldValue, newValue []byte) error

// hookEntry is one link of a Collection's change-hook chain. dead lets
// HookHandle.Remove tombstone a hook (e.g. when its owning Index is
// deleted) without taking a lock against concurrent fireHooks calls —
// the chain has no other way to express "this observer is gone" since
// Go has no weak references (§9 "Cycles").
type hookEntry struct {
	fn   ChangeHook
	dead atomic.Bool
}

// HookHandle lets a caller remove a previously registered change hook.
type HookHandle struct{ e *hookEntry }

// Remove tombstones the hook; it will not fire again, but a fireHooks
// call already iterating past it at the moment of the race may still
// invoke it once more.
func (h *HookHandle) Remove() { h.e.dead.Store(true) }

// Collection is a named, ordered key→value namespace (§3). At most one
// Go Collection instance exists per (Database, name) pair; Database.
// Collection caches and returns it.
type Collection struct {
	db          *Database
	name        string
	keySort     KeySort
	valueSort   ValueSort
	allowDup    bool
	initialized bool

	mu    sync.Mutex
	hooks []*hookEntry
}

// Database returns the Database c was opened from, letting a package
// built only on tkv's public surface (e.g. package index) derive one
// collection's handle from another without a side-channel reference.
func (c *Collection) Database() *Database       { return c.db }
func (c *Collection) Name() string              { return c.name }
func (c *Collection) KeySort() KeySort          { return c.keySort }
func (c *Collection) ValueSortKind() ValueSort   { return c.valueSort }
func (c *Collection) AllowsDuplicates() bool    { return c.allowDup }

// Initialized reports whether this collection already existed the
// first time it was opened in this Database's lifetime (§3). The Index
// subsystem uses this to decide whether it must rebuild from scratch.
func (c *Collection) Initialized() bool { return c.initialized }

// AddChangeHook registers fn to run, in reverse-registration order
// (last registered runs first, §9), on every single-entry mutation.
func (c *Collection) AddChangeHook(fn ChangeHook) *HookHandle {
	e := &hookEntry{fn: fn}
	c.mu.Lock()
	c.hooks = append(c.hooks, e)
	c.mu.Unlock()
	return &HookHandle{e: e}
}

func (c *Collection) hasLiveHooks() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.hooks {
		if !e.dead.Load() {
			return true
		}
	}
	return false
}

// fireHooks invokes every live hook, trapping errors to the database's
// diagnostic sink instead of letting them poison the mutation that
// triggered them (§7 "swallow and log", SPEC_FULL.md §3 WithDiagnosticSink).
func (c *Collection) fireHooks(txnID uint64, key, old, new []byte) {
	c.mu.Lock()
	hooks := make([]*hookEntry, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		e := hooks[i]
		if e.dead.Load() {
			continue
		}
		if err := e.fn(txnID, key, old, new); err != nil {
			c.db.reportHookErr(c.name, err)
		}
	}
}

// tableFlags derives the engine-level flags (§6.2) a collection needs
// from its typed key_sort/value_sort/allow_duplicates attributes.
func tableFlags(keySort KeySort, valueSort ValueSort, allowDup bool) kv.TableFlags {
	var f kv.TableFlags
	switch keySort {
	case KeyLexReverse:
		f |= kv.ReverseKey
	case KeyNativeInt:
		f |= kv.IntegerKey
	}
	if allowDup {
		f |= kv.DupSort
		switch valueSort {
		case ValueNativeInt:
			f |= kv.IntegerDup
		case ValueFixedSize:
			f |= kv.DupFixed
		case ValueLexReverse:
			f |= kv.ReverseDup
		}
	}
	return f
}
