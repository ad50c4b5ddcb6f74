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

	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/internal/mathutil"
	"github.com/coldbrewdb/tkv/kv"
)

// CollectionSnapshot pairs a Collection with a read-only Snapshot: all
// read operations are issued against this pair (§3 "Scoped view"). It
// borrows from both and must not outlive either.
type CollectionSnapshot struct {
	coll *Collection
	tx   kv.Tx
	life *lifetime
}

// With builds the scoped read view of coll as seen by snap.
func With(coll *Collection, snap *Snapshot) CollectionSnapshot {
	return CollectionSnapshot{coll: coll, tx: snap.tx, life: snap.life}
}

// Collection returns the scoped view's collection.
func (cs CollectionSnapshot) Collection() *Collection { return cs.coll }

// EntryCount returns the collection's current entry count.
func (cs CollectionSnapshot) EntryCount() (uint64, error) {
	st, err := cs.tx.BucketStat(cs.coll.name)
	return st.Entries, err
}

// Stats returns the collection's engine-level statistics
// (SPEC_FULL.md §3 CollectionStats).
func (cs CollectionSnapshot) Stats() (kv.Stat, error) {
	return cs.tx.BucketStat(cs.coll.name)
}

// LastSequence returns the collection's current sequence counter value
// (§4.3); 0 if next_sequence has never been called.
func (cs CollectionSnapshot) LastSequence() (uint64, error) {
	return cs.tx.Sequence(cs.coll.name)
}

// CollectionTransaction pairs a Collection with a read-write
// Transaction: all mutating operations are issued against this pair.
type CollectionTransaction struct {
	CollectionSnapshot
	txn *Transaction
}

// WithTxn builds the scoped read-write view of coll within txn.
func WithTxn(coll *Collection, txn *Transaction) CollectionTransaction {
	return CollectionTransaction{
		CollectionSnapshot: CollectionSnapshot{coll: coll, tx: txn.tx, life: txn.life},
		txn:                txn,
	}
}

func (ct CollectionTransaction) rw() kv.RwTx { return ct.txn.tx }

// NextSequence atomically advances the collection's sequence counter by
// count (default 1 if 0) and returns the first value of the newly
// reserved range; the change is visible to other snapshots only after
// commit (§4.3).
func (ct CollectionTransaction) NextSequence(count uint64) (uint64, error) {
	if count == 0 {
		count = 1
	}
	before, err := ct.rw().IncrementSequence(ct.coll.name, count)
	if err != nil {
		return 0, err
	}
	first, overflowed := mathutil.SafeAdd(before, 1)
	if overflowed {
		return 0, errors.New("tkv: sequence counter overflowed uint64")
	}
	return first, nil
}

// DelAll empties the collection, keeping its handle open (§4.4).
// Because it empties the table with the engine's drop primitive rather
// than deleting one key at a time, it does not invoke change hooks, the
// same limitation as PutDuplicates and Cursor.DeleteCurrent.
func (ct CollectionTransaction) DelAll() error {
	return ct.rw().DropBucket(ct.coll.name, true)
}

// DeleteCollection drops the collection entirely (§4.4). It also evicts
// the cached Collection handle from the owning Database, so a later
// Database.Collection call for the same name creates the backing table
// fresh rather than reusing a handle pointed at storage that no longer
// exists.
func (ct CollectionTransaction) DeleteCollection() error {
	if err := ct.rw().DropBucket(ct.coll.name, false); err != nil {
		return err
	}
	ct.coll.db.forgetCollection(ct.coll.name)
	return nil
}

// InSnapshot begins a Snapshot on db, runs f against the scoped view of
// coll, and always finishes the snapshot on return (§4.3).
func InSnapshot(db *Database, coll *Collection, f func(CollectionSnapshot) error) error {
	snap, err := BeginSnapshot(db)
	if err != nil {
		return err
	}
	defer snap.Finish()
	return f(With(coll, snap))
}

// InTransaction begins a Transaction on db, runs f against the scoped
// view of coll, and aborts the transaction on return if f (or the
// caller, inside f) did not already commit it. It never commits
// implicitly (§4.3): f must commit through ct.Txn().Commit() itself,
// otherwise its writes are discarded.
func InTransaction(ctx context.Context, db *Database, coll *Collection, f func(CollectionTransaction) error) error {
	txn, err := BeginTransaction(ctx, db)
	if err != nil {
		return err
	}
	defer txn.Abort()
	return f(WithTxn(coll, txn))
}

// Txn exposes the owning Transaction so f can Commit it explicitly;
// InTransaction deliberately does not commit on the caller's behalf.
func (ct CollectionTransaction) Txn() *Transaction { return ct.txn }
