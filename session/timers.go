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
	"time"
)

// cancelPhaseTimer stops whatever occupies the shared connect-delay /
// heartbeat timer slot (spec.md §3, §9). Must run on the owning Reactor.
func (s *Session) cancelPhaseTimer() {
	if s.phaseTimer != nil {
		s.phaseTimer.Stop()
		s.phaseTimer = nil
	}
	s.phaseGen++
	s.phase = phaseNone
}

// armHeartbeat (re)arms the shared phase timer in heartbeat mode. Only
// valid once StatusRunning, since the connect-delay phase never overlaps
// it (spec.md §9: phases are disjoint).
func (s *Session) armHeartbeat(interval time.Duration) {
	s.cancelPhaseTimer()
	s.phaseGen++
	gen := s.phaseGen
	s.phase = phaseHeartbeat

	s.phaseTimer = time.AfterFunc(interval, func() {
		s.rtr.Post(func(ctx context.Context) {
			s.onHeartbeatFired(ctx, gen)
		})
	})
}

func (s *Session) onHeartbeatFired(ctx context.Context, gen uint64) {
	if s.phaseGen != gen || s.phase != phaseHeartbeat {
		return
	}
	if loadStatus(&s.status) != StatusRunning {
		return
	}

	s.sendMu.Lock()
	empty := len(s.sendQueue) == 0
	s.sendMu.Unlock()

	if empty && len(s.heartbeatPayload) > 0 {
		s.enqueueSend(ctx, s.heartbeatPayload)
	}

	s.armHeartbeat(s.heartbeatInterval)
}

// SetHeartbeat arms (interval > 0) or cancels (interval == 0) the
// heartbeat timer (spec.md §4.4). payload is copied; the copy is reused
// for every firing. Only takes effect while Running — per spec.md, the
// timer is armed "while Running"; calling it earlier just records the
// configuration for startRunning to pick up.
func (s *Session) SetHeartbeat(payload []byte, interval time.Duration) {
	cp := append([]byte(nil), payload...)
	s.rtr.Post(func(ctx context.Context) {
		s.heartbeatPayload = cp
		s.heartbeatInterval = interval

		if interval <= 0 {
			if s.phase == phaseHeartbeat {
				s.cancelPhaseTimer()
			}
			return
		}
		if loadStatus(&s.status) == StatusRunning {
			s.armHeartbeat(interval)
		}
	})
}

// SetRecvTimeout arms or disarms the idle-read deadline applied before
// every read issuance (spec.md §4.4, §4.5 "Idle-read timeout"). Go's
// net.Conn.SetReadDeadline is the idiomatic substitute for a hand-rolled
// timer object here: each read issuance calls SetReadDeadline(now+d)
// exactly where the source would re-arm its recv_idle_timer, and a
// deadline-exceeded Read is reported to the Reactor as a timeout, which
// shuts the Session down with errs.ErrTimedOut. When immediate is true
// and the Session is already Running, the deadline is applied to the
// connection right away instead of waiting for the next read issuance —
// matching the literal wording of the echo/idle-timeout scenario in
// spec.md §8 ("immediate=true").
func (s *Session) SetRecvTimeout(d time.Duration, immediate bool) {
	s.rtr.Post(func(ctx context.Context) {
		s.recvTimeout = d
		if immediate && s.conn != nil && d > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(d))
		}
	})
}
