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

// Package mdbx is the only package in this module that imports
// github.com/erigontech/mdbx-go. It wraps libmdbx's env/txn/cursor
// primitives (§6.2) behind the package kv contract; nothing above this
// package ever sees an *mdbx.Env, *mdbx.Txn or *mdbx.Cursor.
package mdbx

import (
	"context"
	"os"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
)

// Opts configures a database before Open. The zero value is not usable;
// start from New.
type Opts struct {
	path        string
	geometry    kv.Geometry
	maxTables   int
	noSubdir    bool
	readOnly    bool
	exclusive   bool
	writeMap    bool
	mode        os.FileMode
	tables      kv.TableCfg
}

func New(path string) Opts {
	return Opts{
		path:      path,
		maxTables: 64,
		mode:      0o644,
		geometry: kv.Geometry{
			SizeLower:       256 << 10,
			SizeNow:         64 << 20,
			SizeUpper:       4 << 30,
			GrowthStep:      2 << 20,
			ShrinkThreshold: 1 << 20,
			PageSize:        4096,
		},
	}
}

func (o Opts) Geometry(g kv.Geometry) Opts    { o.geometry = g; return o }
func (o Opts) MaxTables(n int) Opts           { o.maxTables = n; return o }
func (o Opts) NoSubdir(v bool) Opts           { o.noSubdir = v; return o }
func (o Opts) ReadOnly(v bool) Opts           { o.readOnly = v; return o }
func (o Opts) Exclusive(v bool) Opts          { o.exclusive = v; return o }
func (o Opts) WriteMap(v bool) Opts           { o.writeMap = v; return o }
func (o Opts) FileMode(m os.FileMode) Opts    { o.mode = m; return o }
func (o Opts) Tables(cfg kv.TableCfg) Opts    { o.tables = cfg; return o }

// Open creates or opens the environment at the configured path.
func (o Opts) Open() (*DB, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: create env")
	}
	if err := env.SetGeometry(
		int(o.geometry.SizeLower), int(o.geometry.SizeNow), int(o.geometry.SizeUpper),
		int(o.geometry.GrowthStep), int(o.geometry.ShrinkThreshold), int(o.geometry.PageSize),
	); err != nil {
		env.Close()
		return nil, errors.Wrap(err, "mdbx: set geometry")
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(o.maxTables)); err != nil {
		env.Close()
		return nil, errors.Wrap(err, "mdbx: set max tables")
	}

	flags := uint(0)
	if o.noSubdir {
		flags |= mdbx.NoSubdir
	}
	if o.readOnly {
		flags |= mdbx.Readonly
	}
	if o.exclusive {
		flags |= mdbx.Exclusive
	}
	if o.writeMap {
		flags |= mdbx.WriteMap
	}

	if err := env.Open(o.path, flags, o.mode); err != nil {
		env.Close()
		return nil, errors.Wrapf(err, "mdbx: open %s", o.path)
	}

	db := &DB{env: env, path: o.path, readOnly: o.readOnly, tables: o.tables, dbis: map[string]mdbx.DBI{}}
	if err := db.openConfiguredTables(); err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

// DB is the package kv.RwDB implementation backed by one mdbx
// environment. Exactly one RwTx may be outstanding against it (§5);
// the guarantee is provided by libmdbx's own writer lock, which
// BeginRw blocks on.
type DB struct {
	env      *mdbx.Env
	path     string
	readOnly bool

	mu     sync.Mutex
	tables kv.TableCfg
	dbis   map[string]mdbx.DBI
}

func (db *DB) openConfiguredTables() error {
	return db.env.Update(func(txn *mdbx.Txn) error {
		for name, cfg := range db.tables {
			flags := mdbx.Create | dbiFlags(cfg.Flags)
			dbi, err := txn.OpenDBI(name, flags, nil, nil)
			if err != nil {
				return errors.Wrapf(err, "mdbx: open table %s", name)
			}
			db.mu.Lock()
			db.dbis[name] = dbi
			db.mu.Unlock()
		}
		return nil
	})
}

func dbiFlags(f kv.TableFlags) mdbx.DBIFlags {
	var out mdbx.DBIFlags
	if f&kv.ReverseKey != 0 {
		out |= mdbx.ReverseKey
	}
	if f&kv.DupSort != 0 {
		out |= mdbx.DupSort
	}
	if f&kv.IntegerKey != 0 {
		out |= mdbx.IntegerKey
	}
	if f&kv.DupFixed != 0 {
		out |= mdbx.DupFixed
	}
	if f&kv.IntegerDup != 0 {
		out |= mdbx.IntegerDup
	}
	if f&kv.ReverseDup != 0 {
		out |= mdbx.ReverseDup
	}
	return out
}

func (db *DB) ReadOnly() bool { return db.readOnly }
func (db *DB) Path() string   { return db.path }

func (db *DB) Close() {
	db.env.Close()
}

func (db *DB) Stat() (kv.EnvStat, error) {
	info, err := db.env.Info()
	if err != nil {
		return kv.EnvStat{}, errors.Wrap(err, "mdbx: env info")
	}
	return kv.EnvStat{
		MapSize:    uint64(info.MapSize),
		LastPageNo: uint64(info.LastPNO),
		LastTxnID:  uint64(info.LastTxnID),
		MaxReaders: info.MaxReaders,
		NumReaders: info.NumReaders,
	}, nil
}

func (db *DB) Geometry() kv.Geometry {
	info, err := db.env.Info()
	if err != nil {
		return kv.Geometry{}
	}
	return kv.Geometry{
		SizeLower:       info.Geo.Lower,
		SizeNow:         info.Geo.Current,
		SizeUpper:       info.Geo.Upper,
		GrowthStep:      info.Geo.GrowthStep,
		ShrinkThreshold: info.Geo.ShrinkThreshold,
		PageSize:        info.PageSize,
	}
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin ro txn")
	}
	return &Tx{db: db, txn: txn}, nil
}

// BeginRw blocks until any other writer (even in another process) has
// released the environment's write lock, per §5.
func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin rw txn")
	}
	return &Tx{db: db, txn: txn, rw: true}, nil
}

// CopyTo creates a consistent copy of the environment at dst.
func (db *DB) CopyTo(dst string, compact bool) error {
	flags := uint(0)
	if compact {
		flags |= mdbx.CopyCompact
	}
	if err := db.env.CopyFlag(dst, flags); err != nil {
		return errors.Wrapf(err, "mdbx: copy to %s", dst)
	}
	return nil
}

func (db *DB) dbi(name string) (mdbx.DBI, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	dbi, ok := db.dbis[name]
	return dbi, ok
}

func (db *DB) rememberDBI(name string, dbi mdbx.DBI) {
	db.mu.Lock()
	db.dbis[name] = dbi
	db.mu.Unlock()
}

func (db *DB) forgetDBI(name string) {
	db.mu.Lock()
	delete(db.dbis, name)
	db.mu.Unlock()
}

var (
	_ kv.RoDB = (*DB)(nil)
	_ kv.RwDB = (*DB)(nil)
)
