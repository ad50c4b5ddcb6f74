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

// Package tkv is the typed, safe collection layer over an embedded
// memory-mapped B+tree engine: Database, Collection, Snapshot/
// Transaction, scoped CRUD and Cursor. It never touches the engine
// directly — everything here is built on the package kv contract, kept
// in package kv/mdbx.
package tkv

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/coldbrewdb/tkv/kv"
	"github.com/coldbrewdb/tkv/kv/mdbx"
	"github.com/coldbrewdb/tkv/tkvlog"
)

// Database is a durable, file-backed store (§3). It owns the engine
// handle and the name→Collection table; every Collection, Snapshot and
// Transaction derived from it borrows this handle and stops working
// once Close has run.
type Database struct {
	engine   kv.RwDB
	path     string
	readOnly bool
	closed   boolFlag

	collMu      sync.Mutex
	collections map[string]*Collection

	genCounter genCounterT

	txnMu    sync.Mutex
	txnsByID map[uint64]interface{} // *Snapshot or *Transaction

	diagSink DiagnosticSink
	log      tkvlog.Logger
	metrics  *dbMetrics
}

// Open creates or opens the database directory (or file, with
// WithFlags(FlagNoSubdir)) at path.
func Open(path string, opts ...Option) (*Database, error) {
	o := defaultOpenOptions(path)
	for _, fn := range opts {
		fn(&o)
	}

	env, err := mdbx.New(path).
		Geometry(o.geometry).
		MaxTables(o.maxCollections).
		NoSubdir(o.flags&FlagNoSubdir != 0).
		ReadOnly(o.flags&FlagReadOnly != 0).
		Exclusive(o.flags&FlagExclusive != 0).
		WriteMap(o.flags&FlagWriteMap != 0).
		FileMode(o.fileMode).
		Open()
	if err != nil {
		return nil, err
	}

	logger := o.logger
	sink := o.diagSink
	if sink == nil {
		sink = func(collection string, hookErr error) {
			logger.Error("change hook failed, mutation was kept", "collection", collection, "err", hookErr)
		}
	}

	db := &Database{
		engine:      env,
		path:        path,
		readOnly:    o.flags&FlagReadOnly != 0,
		collections: map[string]*Collection{},
		txnsByID:    map[uint64]interface{}{},
		diagSink:    sink,
		log:         logger,
		metrics:     newDBMetrics(path),
	}
	if geo := env.Geometry(); geo.SizeNow > 0 {
		db.metrics.setSizeBytes(uint64(geo.SizeNow))
	}
	return db, nil
}

// Stats returns the engine's environment-wide statistics (SPEC_FULL.md
// §3: map size, last page/txn id, reader counts).
func (db *Database) Stats() (kv.EnvStat, error) {
	if db.closed.isSet() {
		return kv.EnvStat{}, kv.ErrClosed
	}
	return db.engine.Stat()
}

func (db *Database) Path() string     { return db.path }
func (db *Database) IsReadOnly() bool { return db.readOnly }

// Collections lists the names of every collection opened through this
// Database instance so far (SPEC_FULL.md §3).
func (db *Database) Collections() []string {
	db.collMu.Lock()
	defer db.collMu.Unlock()
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the engine handle. Any operation on a derived object
// afterward fails with ErrClosed (§4.1).
func (db *Database) Close() {
	if !db.closed.set() {
		return
	}
	db.metrics.unregister()
	db.engine.Close()
}

// CopyTo creates a consistent copy of the database at dst (§4.1).
func (db *Database) CopyTo(dst string, compact bool) error {
	if db.closed.isSet() {
		return kv.ErrClosed
	}
	return db.engine.CopyTo(dst, compact)
}

// Collection returns the Collection named name, opening or creating its
// backing table as needed (§3, §4.1). Subsequent calls with the same
// name on this Database return the same instance; a call with a
// different key_sort/value_sort/allow_duplicates than the cached
// instance fails with ErrIncompatible.
//
// Collection must not be called while a Transaction is open on the same
// Database: it opens its own short write transaction internally and
// would deadlock against the engine's single-writer lock (§5).
func (db *Database) Collection(name string, keySort KeySort, valueSort ValueSort, allowDuplicates, create bool) (*Collection, error) {
	if db.closed.isSet() {
		return nil, kv.ErrClosed
	}
	if allowDuplicates == (valueSort == ValueOpaque) {
		return nil, errors.Wrapf(ErrInvalidConfig, "collection %q", name)
	}

	db.collMu.Lock()
	if c, ok := db.collections[name]; ok {
		db.collMu.Unlock()
		if c.keySort != keySort || c.valueSort != valueSort || c.allowDup != allowDuplicates {
			return nil, errors.Wrapf(kv.ErrIncompatible, "collection %q", name)
		}
		return c, nil
	}
	db.collMu.Unlock()

	flags := tableFlags(keySort, valueSort, allowDuplicates)
	var existedAlready bool
	err := db.withWriteTx(func(tx kv.RwTx) error {
		exists, err := tx.ExistsBucket(name)
		if err != nil {
			return err
		}
		if !exists && !create {
			return errors.Wrapf(kv.ErrNotSupported, "collection %q does not exist", name)
		}
		existedAlready = exists
		if _, err := tx.CreateBucket(name, flags); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	coll := &Collection{
		db:          db,
		name:        name,
		keySort:     keySort,
		valueSort:   valueSort,
		allowDup:    allowDuplicates,
		initialized: existedAlready,
	}
	db.collMu.Lock()
	db.collections[name] = coll
	db.collMu.Unlock()
	return coll, nil
}

// withWriteTx runs fn in its own committed write transaction; used for
// collection lifecycle operations (create/drop) that don't need to
// participate in a caller's Transaction.
func (db *Database) withWriteTx(fn func(kv.RwTx) error) error {
	tx, err := db.engine.BeginRw(context.Background())
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// forgetCollection evicts name from the collection cache, used by
// CollectionTransaction.DeleteCollection so a later Database.Collection
// call recreates the backing table instead of reusing a handle pointed
// at storage that no longer exists.
func (db *Database) forgetCollection(name string) {
	db.collMu.Lock()
	delete(db.collections, name)
	db.collMu.Unlock()
}

func (db *Database) nextGeneration() uint64 { return db.genCounter.next() }

func (db *Database) registerTxn(rawID uint64, owner interface{}) {
	db.txnMu.Lock()
	db.txnsByID[rawID] = owner
	db.txnMu.Unlock()
}

func (db *Database) unregisterTxn(rawID uint64) {
	db.txnMu.Lock()
	delete(db.txnsByID, rawID)
	db.txnMu.Unlock()
}

// RecoverTransaction resolves the owning *Transaction for a raw engine
// transaction id (§9 "Txn↔owner recovery"). Change hooks receive only
// the id; the Index subsystem calls this to rebuild a scoped
// transaction for its own index writes.
func (db *Database) RecoverTransaction(rawID uint64) (*Transaction, bool) {
	db.txnMu.Lock()
	defer db.txnMu.Unlock()
	owner, ok := db.txnsByID[rawID]
	if !ok {
		return nil, false
	}
	txn, ok := owner.(*Transaction)
	return txn, ok
}

func (db *Database) reportHookErr(collection string, err error) {
	db.diagSink(collection, err)
}

// EraseMode selects how Erase/Delete behave if the database might
// still be in use by another process (§4.1).
type EraseMode int

const (
	// EraseForce removes the database without checking for other users.
	EraseForce EraseMode = iota
	// EraseRequireUnused fails immediately if another process holds the
	// engine's lock file.
	EraseRequireUnused
	// EraseWaitForUnused blocks until the lock file is uncontended.
	EraseWaitForUnused
)

func lockFilePath(path string, noSubdir bool) string {
	if noSubdir {
		return path + "-lck"
	}
	return filepath.Join(path, "mdbx.lck")
}

func withUnusedCheck(path string, noSubdir bool, mode EraseMode, fn func() error) error {
	if mode == EraseForce {
		return fn()
	}
	fl := flock.New(lockFilePath(path, noSubdir))
	switch mode {
	case EraseRequireUnused:
		locked, err := fl.TryLock()
		if err != nil {
			return errors.Wrap(err, "tkv: check database lock")
		}
		if !locked {
			return errors.Errorf("tkv: database %q is in use", path)
		}
	case EraseWaitForUnused:
		if err := fl.Lock(); err != nil {
			return errors.Wrap(err, "tkv: wait for database lock")
		}
	}
	defer fl.Unlock()
	return fn()
}

// Erase truncates the database at path back to empty, leaving the
// directory (or file, in no-subdir mode) in place (§4.1).
func Erase(path string, noSubdir bool, mode EraseMode) error {
	fs := afero.NewOsFs()
	return withUnusedCheck(path, noSubdir, mode, func() error {
		if noSubdir {
			return afero.WriteFile(fs, path, nil, 0o644)
		}
		if err := fs.RemoveAll(path); err != nil {
			return err
		}
		return fs.MkdirAll(path, 0o755)
	})
}

// Delete removes the database at path entirely (§4.1).
func Delete(path string, noSubdir bool, mode EraseMode) error {
	fs := afero.NewOsFs()
	return withUnusedCheck(path, noSubdir, mode, func() error {
		if noSubdir {
			return fs.Remove(path)
		}
		return fs.RemoveAll(path)
	})
}
