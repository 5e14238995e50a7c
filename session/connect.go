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
	"net"
	"time"

	"github.com/nabbar/nettcp/errs"
)

// Connect arms the connect-delay timer (if delay > 0) and then dials
// remote, cancelling the dial if it has not completed within timeout
// (spec.md §4.4, §4.5 "Connect phase"). Safe to call from any goroutine;
// internally dispatched onto the owning Reactor. Transitions
// Init -> Connecting. On success the Session becomes Running and
// OnConnect fires; on failure OnConnectFailure fires with the dial error.
//
// Go's context.WithTimeout around DialContext is the idiomatic substitute
// for the source's separate connect-timeout timer object: a context
// deadline cancels the in-flight dial exactly the way the source's timer
// cancels the outstanding async-connect, and DialContext already maps a
// deadline-exceeded dial to a cancellation-flavoured error, which this
// package reports as errs.ErrOperationAborted per spec.md §7.5.
func (s *Session) Connect(remote string, delay, timeout time.Duration) error {
	if _, _, err := net.SplitHostPort(remote); err != nil {
		return err
	}

	s.remoteHint = remote
	storeStatus(&s.status, StatusConnecting)

	s.rtr.Post(func(ctx context.Context) {
		s.doConnect(ctx, remote, delay, timeout)
	})
	return nil
}

func (s *Session) doConnect(ctx context.Context, remote string, delay, timeout time.Duration) {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	if delay > 0 {
		s.armConnectDelay(delay, remote, timeout)
		return
	}
	s.dial(ctx, remote, timeout)
}

func (s *Session) armConnectDelay(delay time.Duration, remote string, timeout time.Duration) {
	s.cancelPhaseTimer()
	s.phaseGen++
	gen := s.phaseGen
	s.phase = phaseConnectDelay

	s.phaseTimer = time.AfterFunc(delay, func() {
		s.rtr.Post(func(ctx context.Context) {
			if s.phaseGen != gen || s.phase != phaseConnectDelay {
				return
			}
			s.phase = phaseNone
			s.dial(ctx, remote, timeout)
		})
	})
}

func (s *Session) dial(ctx context.Context, remote string, timeout time.Duration) {
	dialCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	go func() {
		conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", remote)
		cancel()
		s.rtr.Post(func(ctx context.Context) {
			s.handleDialResult(ctx, conn, err)
		})
	}()
}

func (s *Session) handleDialResult(ctx context.Context, conn net.Conn, err error) {
	if loadStatus(&s.status) != StatusConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		storeStatus(&s.status, StatusInit)
		s.fireConnectFailure(classifyDialError(err))
		return
	}

	s.startRunning(ctx, conn)
}

func classifyDialError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errs.Wrap(err, errs.ErrOperationAborted)
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		return errs.Wrap(err, errs.ErrOperationAborted)
	}
	return errs.Wrap(err, errs.ErrTransport)
}

func (s *Session) fireConnectFailure(err error) {
	s.connectResult.Do(func() {
		if s.h.OnConnectFailure != nil {
			s.h.OnConnectFailure(s, err)
		}
		close(s.done)
	})
}

// Accept installs an already-established connection (the server accept
// path, spec.md §4.5 "Run start": "Init -> Running directly on the
// accept path"). Must be called from the owning Reactor; server.go's
// acceptor always calls it from within a Post.
func (s *Session) Accept(ctx context.Context, conn net.Conn) {
	storeStatus(&s.status, StatusInit)
	s.startRunning(ctx, conn)
}
