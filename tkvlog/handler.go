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

package tkvlog

import (
	"bufio"
	"io"
	"os"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Format renders a Record to bytes for StreamHandler.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(r *Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat always colors the level field; it does no terminal
// detection itself. StreamHandler is what checks for a real terminal
// with mattn/go-isatty and wraps such a writer with mattn/go-colorable
// so ANSI codes render correctly even on a Windows console.
func TerminalFormat() Format {
	return formatFunc(func(r *Record) []byte {
		return append([]byte(fmtRecord(r, true)), '\n')
	})
}

// PlainFormat never emits color, for non-terminal sinks (files, pipes).
func PlainFormat() Format {
	return formatFunc(func(r *Record) []byte {
		return append([]byte(fmtRecord(r, false)), '\n')
	})
}

// StreamHandler writes formatted records to w, serialized by a mutex.
// If w is a TTY (checked with isatty), writes are routed through
// go-colorable so color escapes survive on every platform.
func StreamHandler(w io.Writer, fmtr Format) Handler {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
	}
	var mu sync.Mutex
	bw := bufio.NewWriter(w)
	return handlerFunc(func(r *Record) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := bw.Write(fmtr.Format(r)); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// MultiHandler fans a record out to every handler in hs.
func MultiHandler(hs ...Handler) Handler {
	return handlerFunc(func(r *Record) error {
		var firstErr error
		for _, h := range hs {
			if err := h.Log(r); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}
