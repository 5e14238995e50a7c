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

package tcp_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/nettcp/config"
	tcp "github.com/nabbar/nettcp/client/tcp"
	"github.com/nabbar/nettcp/session"
)

var _ = Describe("Client TCP", func() {
	It("rejects Connect before Run has started the pool", func() {
		c := tcp.New(config.Client{}, nil)
		_, err := c.Connect("127.0.0.1:1", session.Handlers{}, 0, time.Second)
		Expect(err).To(MatchError(tcp.ErrNotRunning))
	})

	It("connects to a real listener and round-trips a message", func() {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer lis.Close()

		go func() {
			conn, aerr := lis.Accept()
			if aerr != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 4)
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, err := conn.Read(buf); err == nil {
				_, _ = conn.Write(buf)
			}
		}()

		c := tcp.New(config.Client{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = c.Run(ctx) }()
		Eventually(c.IsRunning, time.Second, time.Millisecond).Should(BeTrue())

		connected := make(chan struct{}, 1)
		var received []byte
		recvDone := make(chan struct{}, 1)

		sess, err := c.Connect(lis.Addr().String(), session.Handlers{
			OnConnect: func(s *session.Session) { connected <- struct{}{} },
			OnRecv: func(s *session.Session, data []byte) session.RecvResult {
				received = append([]byte(nil), data...)
				recvDone <- struct{}{}
				return session.RecvContinue
			},
		}, 0, time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(sess).ToNot(BeNil())

		Eventually(connected, 2*time.Second).Should(Receive())
		Expect(sess.Send([]byte("ping"))).To(BeTrue())
		Eventually(recvDone, 2*time.Second).Should(Receive())
		Expect(string(received)).To(Equal("ping"))
	})
})
