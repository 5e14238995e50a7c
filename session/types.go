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

import "sync/atomic"

// Status is the Session's state machine position (spec.md §3, §4.5 state
// diagram). Atomically readable; every transition is linearised on the
// owning Reactor.
type Status int32

const (
	// StatusInit is the state of a freshly constructed Session.
	StatusInit Status = iota
	// StatusConnecting is entered by Connect, left on dial success/failure.
	StatusConnecting
	// StatusRunning is entered once the socket is established (client dial
	// success or server accept) and left only by Shutdown.
	StatusRunning
	// StatusShuttingDown is terminal; on-close has fired or is firing.
	StatusShuttingDown
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusConnecting:
		return "connecting"
	case StatusRunning:
		return "running"
	case StatusShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

func loadStatus(p *int32) Status   { return Status(atomic.LoadInt32(p)) }
func storeStatus(p *int32, s Status) { atomic.StoreInt32(p, int32(s)) }

// RecvResult is returned by a stream-mode OnRecv callback to tell the
// receive loop whether to re-issue the next read (spec.md §4.5).
type RecvResult int

const (
	// RecvContinue re-issues the next read immediately.
	RecvContinue RecvResult = iota
	// RecvPause suspends the read loop; nothing in this package resumes
	// it, and Session has no method that re-issues the read.
	RecvPause
	// RecvError suspends the read loop and leaves the Session connected;
	// distinguished from RecvPause only for caller-side bookkeeping.
	RecvError
)

// Handlers is the optional callback set a Session fires into. The Session
// runs in "framed mode" when all three of OnHeaderLength, OnBodyLength and
// OnMessage are set, and in "stream mode" (OnRecv, which may be nil)
// otherwise; the mode is fixed when New is called. This is the
// "compile-time mode switch" of spec.md §6 expressed as a sum-typed
// callback set, per the Go mapping spec.md §9 allows explicitly.
type Handlers struct {
	// OnConnect fires exactly once, from the Reactor, after the Session
	// reaches StatusRunning (spec.md §9's resolved Open Question).
	OnConnect func(s *Session)
	// OnConnectFailure fires exactly once for a client Session that never
	// reached StatusRunning.
	OnConnectFailure func(s *Session, err error)
	// OnClose fires exactly once, whatever the reason for shutdown.
	OnClose func(s *Session, err error)

	// Stream mode.
	OnRecv func(s *Session, data []byte) RecvResult

	// Framed mode.
	OnHeaderLength func() uint32
	OnBodyLength   func(s *Session, header []byte) (int32, error)
	OnMessage      func(s *Session, header, body []byte)
}

func (h Handlers) framed() bool {
	return h.OnHeaderLength != nil && h.OnBodyLength != nil && h.OnMessage != nil
}

func (h Handlers) stream() bool {
	return h.OnRecv != nil
}
