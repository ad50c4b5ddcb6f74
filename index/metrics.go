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

package index

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// indexMetrics tracks tkv_index_update_total, the signaling counter
// §4.6 says is incremented whenever a change hook actually modifies the
// index.
type indexMetrics struct {
	updateTotal *metrics.Counter
}

func newIndexMetrics(sourceName, indexName string) *indexMetrics {
	name := fmt.Sprintf(`tkv_index_update_total{source=%q,index=%q}`, sourceName, indexName)
	return &indexMetrics{updateTotal: metrics.GetOrCreateCounter(name)}
}
