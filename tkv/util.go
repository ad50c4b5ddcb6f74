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

import "sync/atomic"

// boolFlag is a one-way atomic flag (closed, finished) that can only
// ever transition false→true, reporting whether a given call was the
// one that made the transition.
type boolFlag struct{ v atomic.Bool }

// set flips the flag to true, returning true iff this call performed
// the transition (false if it was already set).
func (f *boolFlag) set() bool { return f.v.CompareAndSwap(false, true) }

func (f *boolFlag) isSet() bool { return f.v.Load() }

// genCounterT hands out a strictly increasing sequence of ids, used to
// tag each Snapshot/Transaction for the §9 "runtime generation counter"
// lifetime check.
type genCounterT struct{ v atomic.Uint64 }

func (c *genCounterT) next() uint64 { return c.v.Add(1) }
