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
	"fmt"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// dbMetrics are the process-local gauges/counters SPEC_FULL.md §1
// publishes for one open Database, named and scoped the way the pack's
// own kv abstraction (erigon-lib's kv_interface.go) uses this package.
type dbMetrics struct {
	set *metrics.Set

	sizeBytes  atomic.Uint64 // backs the tkv_db_size_bytes pull callback
	txActiveN  atomic.Int64  // backs the tkv_tx_active pull callback
	txCommit   *metrics.Summary
}

func newDBMetrics(path string) *dbMetrics {
	set := metrics.NewSet()
	m := &dbMetrics{set: set}
	set.NewGauge(fmt.Sprintf(`tkv_db_size_bytes{path=%q}`, path), func() float64 {
		return float64(m.sizeBytes.Load())
	})
	set.NewGauge(fmt.Sprintf(`tkv_tx_active{path=%q}`, path), func() float64 {
		return float64(m.txActiveN.Load())
	})
	m.txCommit = set.GetOrCreateSummary(fmt.Sprintf(`tkv_tx_commit_seconds{path=%q}`, path))
	metrics.RegisterSet(set)
	return m
}

func (m *dbMetrics) setSizeBytes(n uint64) { m.sizeBytes.Store(n) }
func (m *dbMetrics) txBegin()              { m.txActiveN.Add(1) }
func (m *dbMetrics) txEnd()                { m.txActiveN.Add(-1) }

func (m *dbMetrics) unregister() {
	metrics.UnregisterSet(m.set, true)
}
