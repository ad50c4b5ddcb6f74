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

package index_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldbrewdb/tkv/tkv"
)

func openTestDB(t *testing.T) *tkv.Database {
	t.Helper()
	db, err := tkv.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

// byTag emits one entry per comma-separated tag in value, keyed by the
// tag text, with no extra payload.
func byTag(value []byte, emit func(key, extra []byte)) {
	for _, tag := range strings.Split(string(value), ",") {
		if tag == "" {
			continue
		}
		emit([]byte(tag), nil)
	}
}

func putDoc(t *testing.T, db *tkv.Database, docs *tkv.Collection, key, tags string) {
	t.Helper()
	err := tkv.InTransaction(context.Background(), db, docs, func(ct tkv.CollectionTransaction) error {
		if err := ct.Put(key, []byte(tags)); err != nil {
			return err
		}
		return ct.Txn().Commit()
	})
	require.NoError(t, err)
}

func indexKeys(t *testing.T, cs tkv.CollectionSnapshot) []string {
	t.Helper()
	var out []string
	for k := range cs.Pairs() {
		kb, err := k.Bytes()
		require.NoError(t, err)
		out = append(out, string(kb))
	}
	return out
}
