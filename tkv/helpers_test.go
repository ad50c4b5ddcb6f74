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

package tkv_test

import (
	"path/filepath"
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

func openTestCollection(t *testing.T, db *tkv.Database, name string, keySort tkv.KeySort, valueSort tkv.ValueSort, allowDup bool) *tkv.Collection {
	t.Helper()
	coll, err := db.Collection(name, keySort, valueSort, allowDup, true)
	require.NoError(t, err)
	return coll
}
