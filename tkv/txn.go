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
	"context"
	"time"

	"github.com/coldbrewdb/tkv/kv"
)

// Snapshot is a read-only, point-in-time view of a Database (§3). It
// pins the pages it reads: value views borrowed from it stay valid
// until Finish.
type Snapshot struct {
	db   *Database
	tx   kv.Tx
	life *lifetime
}

// BeginSnapshot opens a read-only view of db.
func BeginSnapshot(db *Database) (*Snapshot, error) {
	if db.closed.isSet() {
		return nil, kv.ErrClosed
	}
	tx, err := db.engine.BeginRo(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Snapshot{db: db, tx: tx, life: &lifetime{id: db.nextGeneration()}}
	db.registerTxn(tx.ID(), s)
	db.metrics.txBegin()
	return s, nil
}

// Finish releases the snapshot. Using it afterward raises
// ErrUseAfterFinish. A Snapshot that is simply dropped without Finish
// being called leaks the engine's reader slot until the process exits
// or GC runs a finalizer — callers should always defer Finish.
func (s *Snapshot) Finish() error {
	if !s.life.finished.CompareAndSwap(false, true) {
		return kv.ErrUseAfterFinish
	}
	s.db.unregisterTxn(s.tx.ID())
	s.db.metrics.txEnd()
	s.tx.Abort()
	return nil
}

// Transaction is a read-write view of a Database (§3). At most one
// Transaction may be open on a Database at a time, even across
// processes; BeginTransaction blocks until any other writer releases.
type Transaction struct {
	db      *Database
	tx      kv.RwTx
	life    *lifetime
	started time.Time
}

// BeginTransaction opens a read-write view of db, blocking until any
// other writer (in this or another process) has committed or aborted.
func BeginTransaction(ctx context.Context, db *Database) (*Transaction, error) {
	if db.closed.isSet() {
		return nil, kv.ErrClosed
	}
	tx, err := db.engine.BeginRw(ctx)
	if err != nil {
		return nil, err
	}
	t := &Transaction{db: db, tx: tx, life: &lifetime{id: db.nextGeneration()}, started: time.Now()}
	db.registerTxn(tx.ID(), t)
	db.metrics.txBegin()
	return t, nil
}

// Commit makes every write in the transaction durable. Using t
// afterward raises ErrUseAfterFinish.
func (t *Transaction) Commit() error {
	if !t.life.finished.CompareAndSwap(false, true) {
		return kv.ErrUseAfterFinish
	}
	t.db.unregisterTxn(t.tx.ID())
	t.db.metrics.txEnd()
	t.db.metrics.txCommit.Update(time.Since(t.started).Seconds())
	return t.tx.Commit()
}

// Abort discards every write in the transaction. Using t afterward
// raises ErrUseAfterFinish. A Transaction that is dropped without
// Commit or Abort being called must be treated as an aborted one by
// the caller: always defer Abort and let a successful Commit make it a
// no-op via the one-way finished flag.
func (t *Transaction) Abort() error {
	if !t.life.finished.CompareAndSwap(false, true) {
		return kv.ErrUseAfterFinish
	}
	t.db.unregisterTxn(t.tx.ID())
	t.db.metrics.txEnd()
	t.tx.Abort()
	return nil
}

// ID returns the raw engine transaction id, the same value a change
// hook receives and Database.RecoverTransaction resolves back to t.
func (t *Transaction) ID() uint64 { return t.tx.ID() }
