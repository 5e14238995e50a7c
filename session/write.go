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
	"sync/atomic"
	"time"

	"github.com/nabbar/nettcp/errs"
)

// Send queues p for transmission and returns true if the Session was
// Running when called (spec.md §4.4, and the registry.Handle contract).
// Safe from any goroutine, including the owning Reactor's own callbacks:
// the copy of p is posted to the Reactor and Send returns without waiting
// for it to be enqueued. Returns false once the Session has left
// StatusRunning.
func (s *Session) Send(p []byte) bool {
	if !s.IsRunning() {
		return false
	}
	cp := append([]byte(nil), p...)
	s.rtr.Post(func(ctx context.Context) {
		s.enqueueSend(ctx, cp)
	})
	return true
}

// enqueueSend appends p to the send queue (FIFO, spec.md §8 property) and
// kicks the writer if idle. Must run on the owning Reactor.
func (s *Session) enqueueSend(ctx context.Context, p []byte) bool {
	if loadStatus(&s.status) != StatusRunning {
		return false
	}

	s.sendMu.Lock()
	s.sendQueue = append(s.sendQueue, p)
	idle := !s.writing
	if idle {
		s.writing = true
	}
	s.sendMu.Unlock()

	if idle {
		s.dispatchNextWrite(ctx)
	}
	return true
}

// ClearSendQueue drops any data not yet handed to the kernel (spec.md
// §4.4). Does not affect a write already in flight on the writer
// goroutine.
func (s *Session) ClearSendQueue() {
	s.rtr.Post(func(ctx context.Context) {
		s.sendMu.Lock()
		s.sendQueue = nil
		s.sendMu.Unlock()
	})
}

// dispatchNextWrite pops the head of the send queue and hands it to the
// writer goroutine, applying the rate limiter first if one is configured.
// Must run on the owning Reactor.
func (s *Session) dispatchNextWrite(ctx context.Context) {
	s.sendMu.Lock()
	if len(s.sendQueue) == 0 {
		s.writing = false
		s.sendMu.Unlock()
		return
	}
	next := s.sendQueue[0]
	s.sendQueue = s.sendQueue[1:]
	s.sendMu.Unlock()

	if s.limiter == nil {
		s.writeReq <- next
		return
	}

	s.sendRateLimited(ctx, next)
}

// sendRateLimited enforces SetSendRateLimit by never handing the writer
// goroutine more than the limiter's currently available token count: a
// message longer than that is split into a head of exactly that many
// bytes and a remainder, which is requeued ahead of everything already
// waiting so FIFO order is preserved (spec.md §4.5: "reserves a partial
// send of the still-available token count... schedules the remainder").
// When no tokens are on hand at all, it waits for one burst-sized chunk
// to refill instead of slicing off a zero-byte head, so a saturated
// limiter paces forward progress in burst-sized steps rather than
// busy-looping one byte at a time. Must run on the owning Reactor.
func (s *Session) sendRateLimited(ctx context.Context, data []byte) {
	n := len(data)
	if b := s.limiter.Burst(); n > b {
		n = b
	}
	if avail := int(s.limiter.TokensAt(time.Now())); avail < n && avail > 0 {
		n = avail
	}

	head, rest := data[:n], data[n:]
	if len(rest) > 0 {
		s.sendMu.Lock()
		s.sendQueue = append([][]byte{rest}, s.sendQueue...)
		s.sendMu.Unlock()
	}

	go func() {
		_ = s.limiter.WaitN(ctx, len(head))
		s.writeReq <- head
	}()
}

// writeLoop runs on its own goroutine for the Session's lifetime, blocking
// in the actual net.Conn.Write syscall. Each completed write is handed
// back to the Reactor, mirroring readLoop's completion-posting pattern.
func (s *Session) writeLoop() {
	for data := range s.writeReq {
		n, err := s.writeAll(data)
		atomic.AddInt64(&s.sentThisSec, int64(n))
		s.rtr.Post(func(ctx context.Context) {
			s.handleWriteCompletion(ctx, err)
		})
	}
}

func (s *Session) writeAll(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := s.conn.Write(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *Session) handleWriteCompletion(ctx context.Context, err error) {
	if err != nil {
		s.shutdown(ctx, errs.Wrap(err, errs.ErrTransport))
		return
	}
	if loadStatus(&s.status) != StatusRunning {
		return
	}
	s.dispatchNextWrite(ctx)
}
