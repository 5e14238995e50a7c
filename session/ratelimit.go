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

	"golang.org/x/time/rate"
)

// SetSendRateLimit caps outbound throughput to bytesPerSec (spec.md §4.4,
// §7 "Rate limiting"). A value <= 0 disables limiting. golang.org/x/time/
// rate's token bucket is the idiomatic substitute for a hand-rolled
// per-second send window: the burst size is set equal to the rate, so a
// full second's worth of data may still be written back-to-back after an
// idle period, matching the source's "window resets every second" model
// rather than smoothing traffic within the second.
func (s *Session) SetSendRateLimit(bytesPerSec int64) {
	s.rtr.Post(func(ctx context.Context) {
		s.rateBytesSec = bytesPerSec
		if bytesPerSec <= 0 {
			s.limiter = nil
			s.stopRateTimer()
			atomic.StoreInt64(&s.observedSpeed, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
		if s.rateTimer == nil {
			s.armRateTimer()
		}
	})
}

// armRateTimer schedules the once-a-second telemetry tick that publishes
// RealtimeSpeed (spec.md §4.4). Must run on the owning Reactor.
func (s *Session) armRateTimer() {
	s.rateTimer = time.AfterFunc(time.Second, func() {
		s.rtr.Post(func(ctx context.Context) {
			s.onRateTick(ctx)
		})
	})
}

func (s *Session) onRateTick(ctx context.Context) {
	sent := atomic.SwapInt64(&s.sentThisSec, 0)
	atomic.StoreInt64(&s.observedSpeed, sent)

	if s.limiter != nil && loadStatus(&s.status) == StatusRunning {
		s.armRateTimer()
		return
	}
	s.rateTimer = nil
}

func (s *Session) stopRateTimer() {
	if s.rateTimer != nil {
		s.rateTimer.Stop()
		s.rateTimer = nil
	}
}
