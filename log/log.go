/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package log provides the structured-logging seam the session runtime
// writes events through. It never picks a sink itself — following
// nabbar/golib/logger's wrapping of github.com/hashicorp/go-hclog, a
// caller supplies a Logger (or none, in which case events are dropped).
package log

import (
	hclog "github.com/hashicorp/go-hclog"
)

// Logger is the logging seam accepted by Reactor, Server, Client and Session.
// An hclog.Logger is adapted to it by New (hclog's own With and Named
// return hclog.Logger, so it does not satisfy Logger by itself).
type Logger interface {
	Trace(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
	Named(name string) Logger
}

type wrapper struct {
	hclog.Logger
}

func (w wrapper) With(args ...interface{}) Logger { return wrapper{w.Logger.With(args...)} }
func (w wrapper) Named(name string) Logger        { return wrapper{w.Logger.Named(name)} }

// New wraps an hclog.Logger as a Logger.
func New(l hclog.Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return wrapper{l}
}

// NewDefault builds a reasonable hclog-backed Logger for standalone binaries
// (cmd/echo-server, cmd/echo-client) and for tests that want visible output.
func NewDefault(name string) Logger {
	return New(hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Info,
	}))
}

type nop struct{}

func (nop) Trace(string, ...interface{}) {}
func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}
func (n nop) With(...interface{}) Logger { return n }
func (n nop) Named(string) Logger        { return n }

// NewNop returns a Logger that discards everything. Used as the default
// when a component is constructed without an explicit Logger.
func NewNop() Logger { return nop{} }
