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

package reactor

import (
	"sync/atomic"

	"github.com/nabbar/nettcp/log"
)

// Pool is a fixed set of Reactors with round-robin hand-out for new
// sessions (spec.md §4.2). Grounded on the source's io_service_pool
// (original_source/include/net/ioservicepool.hpp): N worker threads,
// each owning one event loop, chosen in rotation as connections arrive.
type Pool struct {
	reactors []*Reactor
	next     uint64
}

// NewPool constructs a Pool of max(1, size) Reactors, each with the given
// per-reactor queue depth.
func NewPool(size int, queueDepth int, l log.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{reactors: make([]*Reactor, size)}
	for i := 0; i < size; i++ {
		p.reactors[i] = New(uint64(i), queueDepth, l)
	}
	return p
}

// Start starts every Reactor in the pool.
func (p *Pool) Start() {
	for _, r := range p.reactors {
		r.Start()
	}
}

// Stop stops every Reactor in the pool and waits for all of them to exit.
func (p *Pool) Stop() {
	for _, r := range p.reactors {
		r.Stop()
	}
}

// Acquire returns the next Reactor in round-robin order.
func (p *Pool) Acquire() *Reactor {
	n := atomic.AddUint64(&p.next, 1) - 1
	return p.reactors[n%uint64(len(p.reactors))]
}

// Size returns the number of Reactors in the pool.
func (p *Pool) Size() int { return len(p.reactors) }
