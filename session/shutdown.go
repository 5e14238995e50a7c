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

	"github.com/nabbar/nettcp/errs"
)

// Shutdown tears the Session down for reason err. A nil err marks a
// caller-initiated close and is reported to OnClose and Err as
// errs.ErrOperationAborted. Safe from any goroutine; idempotent — only the
// first call has any effect (spec.md §8 "at most one OnClose").
func (s *Session) Shutdown(err error) {
	if err == nil {
		err = errs.ErrOperationAborted
	}
	s.rtr.Post(func(ctx context.Context) {
		s.shutdown(ctx, err)
	})
}

// shutdown is the Reactor-affine implementation behind Shutdown and every
// internal failure path (read/write errors, protocol errors, idle
// timeout). Shutting down from any state other than Running is a no-op
// (spec.md §4.4/§4.5) — in particular it cannot be used to abort a
// pending Connect; fireConnectFailure owns that path independently.
// Must run on the owning Reactor.
func (s *Session) shutdown(ctx context.Context, err error) {
	if loadStatus(&s.status) != StatusRunning {
		return
	}
	storeStatus(&s.status, StatusShuttingDown)

	s.cancelPhaseTimer()
	s.stopRateTimer()

	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.readReady != nil {
		close(s.readReady)
	}
	if s.writeReq != nil {
		close(s.writeReq)
	}

	s.onCloseOnce.Do(func() {
		s.closeErr = err
		if s.h.OnClose != nil {
			s.h.OnClose(s, err)
		}
		close(s.done)
	})
}

// Err returns the reason the Session shut down, or nil if it has not shut
// down.
func (s *Session) Err() error {
	return s.closeErr
}
