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

package session_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/nettcp/errs"
	"github.com/nabbar/nettcp/session"
)

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

var _ = Describe("Session", func() {
	It("echoes in stream mode and invokes OnRecv with the received frame", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()

		var echoed [][]byte
		var mu sync.Mutex

		s := session.New(1, session.Options{
			Reactor: r,
			Handlers: session.Handlers{
				OnRecv: func(s *session.Session, data []byte) session.RecvResult {
					mu.Lock()
					echoed = append(echoed, append([]byte(nil), data...))
					mu.Unlock()
					s.Send(data)
					return session.RecvContinue
				},
			},
		})

		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })

		_, err := peer.Write([]byte("ping"))
		Expect(err).ToNot(HaveOccurred())

		buf := make([]byte, 4)
		peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := peer.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("ping"))

		mu.Lock()
		Expect(echoed).To(Equal([][]byte{[]byte("ping")}))
		mu.Unlock()

		s.Shutdown(nil)
	})

	It("keeps the send queue FIFO across several Send calls", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(2, session.Options{Reactor: r, Handlers: session.Handlers{}})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })

		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		Expect(s.Send([]byte("one"))).To(BeTrue())
		Expect(s.Send([]byte("two"))).To(BeTrue())
		Expect(s.Send([]byte("three"))).To(BeTrue())

		reader := bufio.NewReader(peer)
		peer.SetReadDeadline(time.Now().Add(2 * time.Second))

		got := make([]byte, 11)
		_, err := readFull(reader, got)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(got)).To(Equal("onetwothree"))

		s.Shutdown(nil)
	})

	It("fires OnClose exactly once across repeated Shutdown calls", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()

		var closes int32
		var mu sync.Mutex

		s := session.New(3, session.Options{
			Reactor: r,
			Handlers: session.Handlers{
				OnClose: func(s *session.Session, err error) {
					mu.Lock()
					closes++
					mu.Unlock()
				},
			},
		})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		s.Shutdown(nil)
		s.Shutdown(nil)
		s.Shutdown(errors.New("second call, should be ignored"))

		Eventually(s.IsGone, time.Second, time.Millisecond).Should(BeTrue())
		mu.Lock()
		Expect(closes).To(BeEquivalentTo(1))
		mu.Unlock()
	})

	It("fires OnConnectFailure, not OnClose, when a dial never completes", func() {
		r := newReactor()

		var failureErr error
		var connected, closed bool
		var mu sync.Mutex

		s := session.New(4, session.Options{
			Reactor: r,
			Handlers: session.Handlers{
				OnConnect: func(s *session.Session) {
					mu.Lock()
					connected = true
					mu.Unlock()
				},
				OnConnectFailure: func(s *session.Session, err error) {
					mu.Lock()
					failureErr = err
					mu.Unlock()
				},
				OnClose: func(s *session.Session, err error) {
					mu.Lock()
					closed = true
					mu.Unlock()
				},
			},
		})

		// Port 1 on loopback is reserved/unlikely to accept; a near-zero
		// timeout guarantees the dial is aborted rather than racing a real
		// connection attempt.
		err := s.Connect("127.0.0.1:1", 0, 5*time.Millisecond)
		Expect(err).ToNot(HaveOccurred())

		Eventually(s.IsGone, 2*time.Second, 5*time.Millisecond).Should(BeTrue())

		mu.Lock()
		defer mu.Unlock()
		Expect(connected).To(BeFalse())
		Expect(closed).To(BeFalse())
		Expect(failureErr).To(HaveOccurred())
	})

	It("shuts down with ErrProtocol when OnBodyLength reports an error", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(5, session.Options{
			Reactor: r,
			Handlers: session.Handlers{
				OnHeaderLength: func() uint32 { return 4 },
				OnBodyLength: func(s *session.Session, header []byte) (int32, error) {
					return 0, errors.New("bad header")
				},
				OnMessage: func(s *session.Session, header, body []byte) {},
			},
		})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		peer.SetWriteDeadline(time.Now().Add(time.Second))
		_, err := peer.Write([]byte("head"))
		Expect(err).ToNot(HaveOccurred())

		Eventually(s.IsGone, time.Second, time.Millisecond).Should(BeTrue())
		Expect(errors.Is(s.Err(), errs.ErrProtocol)).To(BeTrue())
	})

	It("shuts down with ErrProtocol when OnBodyLength reports a negative length", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(55, session.Options{
			Reactor: r,
			Handlers: session.Handlers{
				OnHeaderLength: func() uint32 { return 4 },
				OnBodyLength: func(s *session.Session, header []byte) (int32, error) {
					return -1, nil
				},
				OnMessage: func(s *session.Session, header, body []byte) {},
			},
		})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		peer.SetWriteDeadline(time.Now().Add(time.Second))
		_, err := peer.Write([]byte("head"))
		Expect(err).ToNot(HaveOccurred())

		Eventually(s.IsGone, time.Second, time.Millisecond).Should(BeTrue())
		Expect(errors.Is(s.Err(), errs.ErrProtocol)).To(BeTrue())
	})

	It("shuts down the session on an idle receive timeout", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(6, session.Options{Reactor: r, Handlers: session.Handlers{
			OnRecv: func(s *session.Session, data []byte) session.RecvResult { return session.RecvContinue },
		}})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		s.SetRecvTimeout(20*time.Millisecond, true)

		Eventually(s.IsGone, time.Second, time.Millisecond).Should(BeTrue())
		Expect(errors.Is(s.Err(), errs.ErrTimedOut)).To(BeTrue())
	})

	It("sends a heartbeat once the send queue has been idle long enough", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(7, session.Options{Reactor: r})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		s.SetHeartbeat([]byte("hb"), 10*time.Millisecond)

		peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 2)
		n, err := peer.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hb"))

		s.Shutdown(nil)
	})

	It("paces a send larger than the token bucket instead of draining it unthrottled", func() {
		server, peer := net.Pipe()
		defer peer.Close()

		r := newReactor()
		s := session.New(8, session.Options{Reactor: r, Handlers: session.Handlers{}})
		r.Post(func(ctx context.Context) { s.Accept(ctx, server) })
		Eventually(s.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		// 100 B/s with a burst of 100 (SetSendRateLimit sets burst = rate):
		// the first 100 bytes of a 150-byte send leave immediately, the
		// remaining 50 must wait ~0.5s for the bucket to refill. An
		// unclamped send would instead write all 150 bytes as soon as the
		// first WaitN returned.
		s.SetSendRateLimit(100)

		payload := make([]byte, 150)
		for i := range payload {
			payload[i] = byte(i)
		}

		start := time.Now()
		Expect(s.Send(payload)).To(BeTrue())

		dst := make([]byte, len(payload))
		peer.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, err := io.ReadFull(peer, dst)
		elapsed := time.Since(start)

		Expect(err).ToNot(HaveOccurred())
		Expect(dst).To(Equal(payload))
		Expect(elapsed).To(BeNumerically(">=", 400*time.Millisecond))

		s.Shutdown(nil)
	})
})
