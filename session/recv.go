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

package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/nabbar/nettcp/errs"
)

// ErrNegativeBodyLength is wrapped in errs.ErrProtocol and passed to
// shutdown when OnBodyLength reports a negative length: spec.md §3
// invariant 5 treats that as a framing violation, distinct from the
// valid zero-length body case.
var ErrNegativeBodyLength = errors.New("session: framed body length is negative")

// issueNextRead prepares the next read issuance and wakes the read-loop
// goroutine (spec.md §4.5 "Receive loop"). Must run on the owning Reactor.
// In stream mode it grows/compacts the receive buffer so the read-loop
// goroutine has somewhere to write into; in framed mode it sets readNextN
// to the exact byte count the next read must deliver (header size, then
// the body length the last OnBodyLength call reported).
func (s *Session) issueNextRead(ctx context.Context) {
	if loadStatus(&s.status) != StatusRunning {
		return
	}
	if !s.framed {
		s.recvBuf.Compact()
		if s.recvBuf.Available() == 0 {
			s.recvBuf.Grow(s.recvBuf.Capacity())
		}
	} else if s.readNextN == 0 {
		s.readNextN = s.headerSize
	}

	select {
	case s.readReady <- struct{}{}:
	default:
		// a read is already pending; nothing to do.
	}
}

// readLoop runs on its own goroutine for the Session's lifetime, blocking
// in the actual net.Conn syscall the owning Reactor must never block in.
// Each completed read is handed back to the Reactor via Post, which is
// the Go-idiomatic rendering of the source's io_service completion
// handler (package doc, and spec.md §4.5).
func (s *Session) readLoop() {
	for range s.readReady {
		if s.framed {
			n := s.readNextN
			buf := make([]byte, n)
			s.applyReadDeadline()
			read, err := io.ReadFull(s.conn, buf)
			s.rtr.Post(func(ctx context.Context) {
				s.handleFramedRead(ctx, buf[:read], err)
			})
		} else {
			buf := s.recvBuf.WriteSlice()
			s.applyReadDeadline()
			n, err := s.conn.Read(buf)
			s.rtr.Post(func(ctx context.Context) {
				s.handleStreamRead(ctx, n, err)
			})
		}
	}
}

func (s *Session) applyReadDeadline() {
	if s.recvTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.recvTimeout))
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
}

func (s *Session) handleStreamRead(ctx context.Context, n int, err error) {
	if loadStatus(&s.status) != StatusRunning {
		return
	}
	if err != nil {
		s.shutdown(ctx, classifyReadError(err))
		return
	}

	s.recvBuf.Advance(n)

	data := s.recvBuf.ReadSlice()
	result := RecvContinue
	if s.h.OnRecv != nil {
		result = s.h.OnRecv(s, data)
	}
	s.recvBuf.Skip(len(data))

	if result == RecvContinue {
		s.issueNextRead(ctx)
	}
}

func (s *Session) handleFramedRead(ctx context.Context, data []byte, err error) {
	if loadStatus(&s.status) != StatusRunning {
		return
	}
	if err != nil {
		s.shutdown(ctx, classifyReadError(err))
		return
	}

	if s.pendingHeader == nil {
		header := append([]byte(nil), data...)
		bodyLen, berr := s.h.OnBodyLength(s, header)
		if berr != nil {
			s.shutdown(ctx, errs.Wrap(berr, errs.ErrProtocol))
			return
		}
		if bodyLen < 0 {
			s.shutdown(ctx, errs.Wrap(ErrNegativeBodyLength, errs.ErrProtocol))
			return
		}
		if bodyLen == 0 {
			s.pendingHeader = nil
			s.readNextN = s.headerSize
			if s.h.OnMessage != nil {
				s.h.OnMessage(s, header, nil)
			}
			s.issueNextRead(ctx)
			return
		}

		s.pendingHeader = header
		s.readNextN = int(bodyLen)
		s.issueNextRead(ctx)
		return
	}

	header := s.pendingHeader
	s.pendingHeader = nil
	s.readNextN = s.headerSize

	if s.h.OnMessage != nil {
		s.h.OnMessage(s, header, data)
	}
	s.issueNextRead(ctx)
}

func classifyReadError(err error) error {
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return errs.Wrap(err, errs.ErrTimedOut)
	}
	return errs.FromRead(err)
}
