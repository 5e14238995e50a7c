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

// Package errs provides coded error wrapping for the session runtime.
//
// It follows the error-code-plus-chain pattern of nabbar/golib/errors,
// trimmed to what a single-connection TCP framework needs: a small set
// of sentinel codes that every on-close / on-connect-failure callback
// can switch on, wrapped with github.com/pkg/errors so the originating
// syscall or library error is never discarded.
package errs

import (
	"io"
	"syscall"

	"github.com/pkg/errors"
)

// Code classifies the reason a Session left the Running or Connecting state.
type Code uint16

const (
	// CodeUnknown is the zero value, used when no classification applies.
	CodeUnknown Code = iota
	// CodeOperationAborted marks a user-requested shutdown or cancelled timer wait.
	CodeOperationAborted
	// CodeTimedOut marks an idle-read or connect-timeout expiry.
	CodeTimedOut
	// CodeEOF marks a clean peer-initiated close.
	CodeEOF
	// CodeConnectionReset marks an abrupt peer reset.
	CodeConnectionReset
	// CodeProtocol marks a framed-mode body-length probe violation.
	CodeProtocol
	// CodeNotConnected marks an operation attempted outside the Running state.
	CodeNotConnected
	// CodeAlreadyExists marks a registry insert collision on an existing session id.
	CodeAlreadyExists
	// CodeTransport marks any other socket-level error.
	CodeTransport
)

func (c Code) String() string {
	switch c {
	case CodeOperationAborted:
		return "operation aborted"
	case CodeTimedOut:
		return "timed out"
	case CodeEOF:
		return "eof"
	case CodeConnectionReset:
		return "connection reset"
	case CodeProtocol:
		return "protocol error"
	case CodeNotConnected:
		return "not connected"
	case CodeAlreadyExists:
		return "already exists"
	case CodeTransport:
		return "transport error"
	default:
		return "unknown error"
	}
}

// Sentinel values usable with errors.Is. Each carries its own Code so
// (Code) below can recover the classification after wrapping.
var (
	ErrOperationAborted = &coded{code: CodeOperationAborted, msg: CodeOperationAborted.String()}
	ErrTimedOut         = &coded{code: CodeTimedOut, msg: CodeTimedOut.String()}
	ErrEOF              = &coded{code: CodeEOF, msg: CodeEOF.String()}
	ErrConnectionReset  = &coded{code: CodeConnectionReset, msg: CodeConnectionReset.String()}
	ErrProtocol         = &coded{code: CodeProtocol, msg: CodeProtocol.String()}
	ErrNotConnected     = &coded{code: CodeNotConnected, msg: CodeNotConnected.String()}
	ErrAlreadyExists    = &coded{code: CodeAlreadyExists, msg: CodeAlreadyExists.String()}
)

type coded struct {
	code Code
	msg  string
}

func (e *coded) Error() string { return e.msg }

// Wrap attaches sentinel to err's chain (err is kept as the cause, with a
// stack recorded by github.com/pkg/errors.WithStack) so the original
// transport error is preserved while errors.Is(result, sentinel) still
// succeeds.
func Wrap(err error, sentinel *coded) error {
	if err == nil {
		return sentinel
	}
	return &wrapped{cause: errors.WithStack(err), sentinel: sentinel}
}

type wrapped struct {
	cause    error
	sentinel *coded
}

func (w *wrapped) Error() string {
	return w.sentinel.msg + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() error { return w.cause }

func (w *wrapped) Is(target error) bool {
	c, ok := target.(*coded)
	return ok && c == w.sentinel
}

// GetCode recovers the Code classification of err, walking Unwrap chains.
// Returns CodeUnknown if err carries no sentinel.
func GetCode(err error) Code {
	for err != nil {
		if c, ok := err.(*coded); ok {
			return c.code
		}
		if w, ok := err.(*wrapped); ok {
			return w.sentinel.code
		}
		err = errors.Unwrap(err)
	}
	return CodeUnknown
}

// FromRead classifies an error returned by a read completion, per spec.md §7.3.
func FromRead(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return Wrap(err, ErrEOF)
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return Wrap(err, ErrConnectionReset)
	}
	return Wrap(err, ErrTransport)
}

// ErrTransport is the catch-all sentinel for socket errors that do not
// classify as EOF, reset, timeout, or protocol.
var ErrTransport = &coded{code: CodeTransport, msg: CodeTransport.String()}
