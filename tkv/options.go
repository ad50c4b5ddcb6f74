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
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	"github.com/coldbrewdb/tkv/kv"
	"github.com/coldbrewdb/tkv/tkvlog"
)

// OpenFlag configures Open the way the engine's own env flags do.
type OpenFlag uint

const (
	FlagNoSubdir  OpenFlag = 1 << iota // database is a single file, not a directory
	FlagReadOnly                      // refuse any write transaction
	FlagExclusive                     // refuse any other process opening the same file
	FlagWriteMap                      // map the data file writable, trading durability for speed
)

// DiagnosticSink receives change-hook errors trapped by the "swallow
// and log" policy (§7, SPEC_FULL.md §1). collection is the hook's
// owning collection name.
type DiagnosticSink func(collection string, err error)

type openOptions struct {
	flags          OpenFlag
	fileMode       os.FileMode
	geometry       kv.Geometry
	maxCollections int
	diagSink       DiagnosticSink
	logger         tkvlog.Logger
}

func defaultOpenOptions(path string) openOptions {
	return openOptions{
		fileMode:       0o644,
		maxCollections: 64,
		geometry: kv.Geometry{
			SizeLower:       256 << 10,
			SizeNow:         64 << 20,
			SizeUpper:       4 << 30,
			GrowthStep:      2 << 20,
			ShrinkThreshold: 1 << 20,
			PageSize:        4096,
		},
		logger: tkvlog.New("db", path),
	}
}

// Option configures Open.
type Option func(*openOptions)

// WithGeometry sets the database's size/growth configuration (§3).
func WithGeometry(g kv.Geometry) Option { return func(o *openOptions) { o.geometry = g } }

// WithMaxCollections caps how many named collections the database may
// hold open simultaneously.
func WithMaxCollections(n int) Option { return func(o *openOptions) { o.maxCollections = n } }

// WithFileMode sets the mode bits for a newly created database file.
func WithFileMode(m os.FileMode) Option { return func(o *openOptions) { o.fileMode = m } }

// WithFlags ORs f into the open flags.
func WithFlags(f OpenFlag) Option { return func(o *openOptions) { o.flags |= f } }

// WithDiagnosticSink overrides where trapped change-hook errors go;
// the default logs through tkvlog at LvlError.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(o *openOptions) { o.diagSink = sink }
}

// WithLogger overrides the database's ambient logger.
func WithLogger(l tkvlog.Logger) Option { return func(o *openOptions) { o.logger = l } }

// ParseByteSize parses a human-readable size ("2GiB", "64KiB", ...) into
// a byte count, for configuration accepted as text (CLI flags,
// environment variables); Geometry fields themselves stay plain int64
// bytes.
func ParseByteSize(s string) (uint64, error) {
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "tkv: parse byte size %q", s)
	}
	return bs.Bytes(), nil
}
