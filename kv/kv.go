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

// Package kv is the seam between the typed collection layer (package
// tkv) and whatever memory-mapped B+tree engine actually owns the
// bytes on disk. It names the primitives §6.2 of the design expects
// from that engine — open/close a handle, begin/commit/abort a
// transaction, open a named collection inside a transaction, and walk
// it with a cursor — without committing to a particular engine.
//
// kv/mdbx is, for now, the only implementation.
//
// Naming:
//
//	Ro / Rw   - read-only / read-write
//	Tx        - a transaction (read or read-write)
//	DBI       - the engine's internal handle for an open collection
//	Cursor    - low-level ordered iterator over one collection
package kv

import "context"

// TableFlags configure a collection's physical layout in the engine.
// These are engine-level bits; the typed layer (tkv.Collection) derives
// them from its own KeySort/ValueSort vocabulary (see tkv/collection.go).
type TableFlags uint

const (
	Default    TableFlags = 0x00
	ReverseKey TableFlags = 0x02
	DupSort    TableFlags = 0x04
	IntegerKey TableFlags = 0x08
	DupFixed   TableFlags = 0x10
	IntegerDup TableFlags = 0x20
	ReverseDup TableFlags = 0x40
)

// TableCfgItem describes one named collection as the engine should
// create or expect it.
type TableCfgItem struct {
	Flags TableFlags
}

// TableCfg is a catalog of tables keyed by name, which an engine
// binding's Opts.Tables can pre-open at open time. tkv.Open passes
// none; Database.Collection creates collections on demand.
type TableCfg map[string]TableCfgItem

// PutFlags is the canonical flag set §6.2 lists for the write-with-
// flags primitive. Exactly one of Upsert/NoOverwrite/Append should be
// set for the "where" behavior; AllDups/NoDupData/AppendDup/Reserve/
// Multiple/Current compose with it for dup-sort collections.
type PutFlags uint

const (
	Upsert      PutFlags = 0x00
	NoOverwrite PutFlags = 0x10
	Current     PutFlags = 0x40
	Append      PutFlags = 0x20000
	AllDups     PutFlags = 0x20
	NoDupData   PutFlags = 0x20
	AppendDup   PutFlags = 0x20400
	Reserve     PutFlags = 0x10000
	Multiple    PutFlags = 0x80000
)

// CursorOp selects the positioning operation for Cursor.Get in the
// engine binding; the typed Cursor in package tkv never issues these
// directly; it calls the named Cursor methods below.
type CursorOp int

const (
	OpFirst CursorOp = iota
	OpFirstDup
	OpGetBoth
	OpGetBothRange
	OpGetCurrent
	OpLast
	OpLastDup
	OpNext
	OpNextDup
	OpNextNoDup
	OpPrev
	OpPrevDup
	OpPrevNoDup
	OpSet
	OpSetKey
	OpSetRange
)

// Stat mirrors the engine's per-collection statistics primitive.
type Stat struct {
	PSize      uint32
	Depth      uint32
	BranchPages  uint64
	LeafPages    uint64
	OverflowPages uint64
	Entries    uint64
}

// EnvStat mirrors env-wide statistics (§4.1 Database.stats).
type EnvStat struct {
	MapSize      uint64
	LastPageNo   uint64
	LastTxnID    uint64
	MaxReaders   uint32
	NumReaders   uint32
}

// Geometry is the engine's size/growth configuration (§3 Database).
type Geometry struct {
	SizeLower   int64
	SizeNow     int64
	SizeUpper   int64
	GrowthStep  int64
	ShrinkThreshold int64
	PageSize    int64
}

// Has/Getter/Putter/Deleter/Closer follow the pack's own naming for
// these small, composable capability interfaces.
type Has interface {
	Has(table string, key []byte) (bool, error)
}

type Getter interface {
	Has
	// GetOne returns a zero-copy slice valid only until the owning
	// transaction ends. nil, nil means "not found".
	GetOne(table string, key []byte) ([]byte, error)
	// SeekGE returns the first key >= key, or (nil, nil, nil) if none.
	SeekGE(table string, key []byte) (k, v []byte, err error)
}

type Putter interface {
	Put(table string, k, v []byte, flags PutFlags) error
	// PutReserve lets the engine allocate the value's backing storage
	// and hands it to fill for in-place writing.
	PutReserve(table string, k []byte, n int, flags PutFlags, fill func([]byte)) error
	// PutMultiple bulk-inserts count equal-length values (values is
	// their concatenation) under one key into a DupFixed collection.
	// Per §4.4, this path never invokes change hooks.
	PutMultiple(table string, k []byte, values []byte, count int, flags PutFlags) error
	// Replace atomically swaps the value at k, handing the previous
	// value (if any) to old before it is overwritten, and reports
	// whether a previous value existed.
	Replace(table string, k, v []byte, old func([]byte)) (existed bool, err error)
}

type Deleter interface {
	// Del deletes all values at k (value == nil) or one exact pair.
	Del(table string, k, v []byte) (existed bool, err error)
}

type Closer interface {
	Close()
}

// BucketMigrator manages a collection's lifecycle within a transaction.
type BucketMigrator interface {
	CreateBucket(table string, flags TableFlags) (created bool, err error)
	DropBucket(table string, deleteAll bool) error
	ExistsBucket(table string) (bool, error)
	ListBuckets() ([]string, error)
}

// RoDB is a read-only database handle.
type RoDB interface {
	Closer
	ReadOnly() bool
	Path() string
	BeginRo(ctx context.Context) (Tx, error)
	Stat() (EnvStat, error)
	Geometry() Geometry
	// CopyTo writes a consistent copy of the environment to dst (§4.1
	// Database.copy_to); compact requests the engine's space-reclaiming
	// copy mode over its plain page-for-page one.
	CopyTo(dst string, compact bool) error
}

// RwDB is a read-write database handle: at most one RwTx may be open
// against it at any time (§5).
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
}

// Tx is a read-only transaction (or the read side of a read-write one).
type Tx interface {
	Getter
	ID() uint64
	Cursor(table string) (Cursor, error)
	CursorDupSort(table string) (CursorDupSort, error)
	Sequence(table string) (uint64, error)
	BucketStat(table string) (Stat, error)
	// Abort releases the transaction without committing. Safe on both
	// read-only and read-write transactions; RwTx.Commit supersedes it
	// for the write side.
	Abort()
}

// RwTx is a read-write transaction.
type RwTx interface {
	Tx
	Putter
	Deleter
	BucketMigrator
	RwCursor(table string) (RwCursor, error)
	RwCursorDupSort(table string) (RwCursorDupSort, error)
	// IncrementSequence atomically advances table's sequence counter by
	// amount and returns its value before the increment.
	IncrementSequence(table string, amount uint64) (uint64, error)
	Commit() error
}

// Cursor walks one collection in key order.
type Cursor interface {
	First() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Count() (uint64, error)
	Close()
}

type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Append(k, v []byte) error
	Delete(k []byte) error
	DeleteCurrent() error
}

// CursorDupSort adds the duplicate-key navigation primitives; valid
// only against collections opened with DupSort.
type CursorDupSort interface {
	Cursor
	SeekBothExact(key, value []byte) (k, v []byte, err error)
	SeekBothRange(key, value []byte) (v []byte, err error)
	FirstDup() (v []byte, err error)
	NextDup() (k, v []byte, err error)
	NextNoDup() (k, v []byte, err error)
	PrevDup() (k, v []byte, err error)
	PrevNoDup() (k, v []byte, err error)
	LastDup() (v []byte, err error)
	CountDuplicates() (uint64, error)
}

type RwCursorDupSort interface {
	CursorDupSort
	RwCursor
	PutNoDupData(key, value []byte) error
	DeleteCurrentDuplicates() error
	DeleteExact(k, v []byte) error
	AppendDup(key, value []byte) error
}
