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

package reactor_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/nettcp/reactor"
)

var _ = Describe("Reactor", func() {
	It("runs a posted task on the worker goroutine", func() {
		r := reactor.New(1, 4, nil)
		r.Start()
		defer r.Stop()

		done := make(chan struct{})
		r.Post(func(ctx context.Context) {
			close(done)
		})

		Eventually(done, time.Second).Should(BeClosed())
	})

	It("runs posted tasks in FIFO order", func() {
		r := reactor.New(1, 16, nil)
		r.Start()
		defer r.Stop()

		var (
			mu  sync.Mutex
			got []int
		)
		var wg sync.WaitGroup
		wg.Add(5)
		for i := 0; i < 5; i++ {
			i := i
			r.Post(func(ctx context.Context) {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
				wg.Done()
			})
		}
		wg.Wait()

		Expect(got).To(Equal([]int{0, 1, 2, 3, 4}))
	})

	It("dispatches inline when already on the owning Reactor", func() {
		r := reactor.New(1, 4, nil)
		r.Start()
		defer r.Stop()

		var sameGoroutineOrder []string
		done := make(chan struct{})
		r.Post(func(ctx context.Context) {
			sameGoroutineOrder = append(sameGoroutineOrder, "outer-start")
			r.Dispatch(ctx, func(ctx context.Context) {
				sameGoroutineOrder = append(sameGoroutineOrder, "inline")
			})
			sameGoroutineOrder = append(sameGoroutineOrder, "outer-end")
			close(done)
		})
		<-done

		// Dispatch from on-reactor code runs inline, so "inline" is observed
		// between "outer-start" and "outer-end", never after via a separate
		// queued task.
		Expect(sameGoroutineOrder).To(Equal([]string{"outer-start", "inline", "outer-end"}))
	})

	It("posts instead of running inline when Dispatch is called off-reactor", func() {
		r := reactor.New(1, 4, nil)
		r.Start()
		defer r.Stop()

		done := make(chan struct{})
		r.Dispatch(context.Background(), func(ctx context.Context) {
			close(done)
		})

		Eventually(done, time.Second).Should(BeClosed())
	})

	It("makes Stop idempotent and drops posts made afterwards", func() {
		r := reactor.New(1, 4, nil)
		r.Start()
		r.Stop()
		r.Stop() // must not panic or block

		r.Post(func(ctx context.Context) { Fail("should not run after stop") })
		Consistently(func() bool { return true }, 10*time.Millisecond).Should(BeTrue())
	})

	Context("Pool", func() {
		It("round-robins across its reactors and wraps around", func() {
			p := reactor.NewPool(3, 4, nil)
			Expect(p.Size()).To(Equal(3))

			ids := map[uint64]bool{}
			for i := 0; i < 3; i++ {
				ids[p.Acquire().ID()] = true
			}
			Expect(ids).To(HaveLen(3))

			first := p.Acquire()
			for i := 0; i < 2; i++ {
				p.Acquire()
			}
			fourth := p.Acquire()
			Expect(fourth.ID()).To(Equal(first.ID()))
		})

		It("clamps a non-positive size up to one", func() {
			p := reactor.NewPool(0, 4, nil)
			Expect(p.Size()).To(Equal(1))
		})

		It("starts and stops every reactor in the pool", func() {
			p := reactor.NewPool(2, 4, nil)
			p.Start()
			defer p.Stop()

			done := make(chan struct{})
			p.Acquire().Post(func(ctx context.Context) { close(done) })
			Eventually(done, time.Second).Should(BeClosed())
		})
	})
})
