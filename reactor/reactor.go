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

// Package reactor implements the single-threaded event loop a Session is
// affine to (spec.md §4.2, §5). A Reactor drains a buffered channel of
// closures on one goroutine; Post always enqueues, Dispatch runs inline
// when the caller can prove — via a context.Context token stamped by the
// loop itself — that it is already executing on this Reactor, and
// otherwise falls back to Post. This is the Go-idiomatic substitute for
// the source's single-threaded io_service::post/dispatch pair: Go has no
// goroutine-local storage, so affinity is proven by threading the loop's
// own context down through every internal continuation instead of
// inspecting the runtime.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nabbar/nettcp/log"
)

type reactorKeyType struct{}

var reactorKey reactorKeyType

// WithReactor stamps ctx with r's affinity token. The reactor's run loop
// calls this once per dequeued closure; internal continuations that
// receive the resulting context and hand it back into Dispatch prove
// they are still executing on r.
func WithReactor(ctx context.Context, r *Reactor) context.Context {
	return context.WithValue(ctx, reactorKey, r)
}

// onReactor reports whether ctx carries r's affinity token.
func onReactor(ctx context.Context, r *Reactor) bool {
	v, _ := ctx.Value(reactorKey).(*Reactor)
	return v == r
}

// Task is a unit of work posted to a Reactor. It receives a context
// stamped with the Reactor's own affinity token, to be threaded into any
// further Dispatch/Post calls the task makes.
type Task func(ctx context.Context)

// Reactor is a single-goroutine event loop. All socket I/O completions
// and timer callbacks for a Session are posted here; this single-threaded
// discipline is what lets Session avoid locking its status, timers,
// receive buffer, and callback slots (spec.md §5).
type Reactor struct {
	id      uint64
	log     log.Logger
	queue   chan Task
	done    chan struct{}
	wg      sync.WaitGroup
	running int32
}

// New constructs a Reactor with the given id (used only for logging and
// round-robin identification) and work-queue depth.
func New(id uint64, queueDepth int, l log.Logger) *Reactor {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	if l == nil {
		l = log.NewNop()
	}
	return &Reactor{
		id:    id,
		log:   l.Named("reactor").With("id", id),
		queue: make(chan Task, queueDepth),
		done:  make(chan struct{}),
	}
}

// Start spins up the worker goroutine. Calling Start on an already-running
// Reactor is a no-op.
func (r *Reactor) Start() {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return
	}
	r.wg.Add(1)
	go r.run()
}

// Stop drains no further tasks, signals the worker to exit, and blocks until the
// worker goroutine has exited. Any tasks still queued when Stop is called
// are discarded — Reactor.Stop is a hard stop, not a graceful drain,
// matching the framework's abortive shutdown model (spec.md §1 non-goals).
func (r *Reactor) Stop() {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 2) {
		return
	}
	close(r.done)
	r.wg.Wait()
}

func (r *Reactor) run() {
	defer r.wg.Done()
	ctx := WithReactor(context.Background(), r)
	for {
		select {
		case <-r.done:
			return
		case t := <-r.queue:
			r.exec(ctx, t)
		}
	}
}

func (r *Reactor) exec(ctx context.Context, t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recovered panic in reactor task", "panic", rec)
		}
	}()
	t(ctx)
}

// Post always enqueues t to run on the Reactor's goroutine after every
// task already queued ahead of it. Safe to call from any goroutine.
// Silently dropped if the Reactor has been stopped.
func (r *Reactor) Post(t Task) {
	if atomic.LoadInt32(&r.running) != 1 {
		return
	}
	select {
	case r.queue <- t:
	case <-r.done:
	}
}

// Dispatch runs t inline if ctx proves the caller is already executing on
// this Reactor, otherwise it behaves exactly like Post.
func (r *Reactor) Dispatch(ctx context.Context, t Task) {
	if onReactor(ctx, r) {
		r.exec(ctx, t)
		return
	}
	r.Post(t)
}

// ID returns the Reactor's identifier within its pool.
func (r *Reactor) ID() uint64 { return r.id }
