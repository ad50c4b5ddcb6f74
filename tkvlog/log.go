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

// Package tkvlog is the module's ambient logger: a small log15-style
// leveled logger with structured key/value context, the same shape
// the teacher carries for this purpose. It exists mainly so the
// database/transaction lifecycle and the index subsystem's "swallow
// and log" change-hook policy (§7) have somewhere real to write.
package tkvlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	case LvlTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Record is one emitted log line.
type Record struct {
	Time  time.Time
	Lvl   Lvl
	Msg   string
	Ctx   []interface{}
	Call  stack.Call
}

// Handler processes a Record. Handlers must be safe for concurrent use.
type Handler interface {
	Log(r *Record) error
}

// Logger is the leveled, context-carrying logging interface used
// throughout the module.
type Logger interface {
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	mu  *sync.Mutex
	h   *Handler
}

// Root returns a new top-level Logger writing to a terminal-aware
// handler on os.Stderr at LvlInfo.
func Root() Logger {
	l := &logger{mu: &sync.Mutex{}, h: new(Handler)}
	*l.h = LvlFilterHandler(LvlInfo, StreamHandler(os.Stderr, TerminalFormat()))
	return l
}

func New(ctx ...interface{}) Logger { return Root().New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{
		ctx: append(append([]interface{}{}, l.ctx...), ctx...),
		mu:  l.mu,
		h:   l.h,
	}
	return child
}

func (l *logger) SetHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.h = h
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.mu.Lock()
	h := *l.h
	l.mu.Unlock()
	if h == nil {
		return
	}
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), ctx...),
	}
	if lvl == LvlCrit {
		r.Call = stack.Caller(2)
	}
	_ = h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// LvlFilterHandler drops records above the given verbosity.
func LvlFilterHandler(max Lvl, h Handler) Handler {
	return handlerFunc(func(r *Record) error {
		if r.Lvl > max {
			return nil
		}
		return h.Log(r)
	})
}

type handlerFunc func(r *Record) error

func (f handlerFunc) Log(r *Record) error { return f(r) }

// DiscardHandler drops every record; useful in tests.
func DiscardHandler() Handler {
	return handlerFunc(func(*Record) error { return nil })
}

// fmtRecord renders one record as "t=... lvl=... msg=... k=v k=v ...",
// the same layout the teacher's ambient logger produces.
func fmtRecord(r *Record, color bool) string {
	lvlColor := ""
	reset := ""
	if color {
		lvlColor = colorForLvl(r.Lvl)
		reset = "\x1b[0m"
	}
	s := fmt.Sprintf("t=%s %slvl=%s%s msg=%q", r.Time.Format(time.RFC3339), lvlColor, r.Lvl, reset, r.Msg)
	for i := 0; i+1 < len(r.Ctx); i += 2 {
		s += fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])
	}
	if r.Lvl == LvlCrit && r.Call.Frame().Function != "" {
		s += fmt.Sprintf(" at=%+v", r.Call)
	}
	return s
}

func colorForLvl(l Lvl) string {
	switch l {
	case LvlCrit, LvlError:
		return "\x1b[31m" // red
	case LvlWarn:
		return "\x1b[33m" // yellow
	case LvlInfo:
		return "\x1b[32m" // green
	default:
		return "\x1b[36m" // cyan
	}
}
