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

// Package registry implements the thread-safe session-id-to-handle map
// (spec.md §4.3), grounded on nabbar/golib/atomic's sync.Map wrapper
// idiom (atomic/synmap.go): a single map behind one coarse mutex, since
// registry operations (insert on accept/connect, remove on close) are
// infrequent relative to per-connection I/O.
//
// Go has no weak_ptr, so "non-owning handle" is modeled differently from
// the C++ source: the registry holds a Handle — an interface narrow
// enough (SessionID, IsRunning, Send) that holding it does not by
// itself keep a Session's socket or goroutines alive any longer than the
// Session's own on-close bookkeeping already does; Get returns that same
// Handle, never a second owning reference, and Remove is what the
// Session's on-close path calls once shutdown has fired, which is the
// point at which the last strong reference the registry was keeping
// (none — it never held one) would have been released anyway.
package registry

import (
	"sync"

	"github.com/nabbar/nettcp/errs"
)

// Handle is the minimal surface the registry needs in order to broadcast,
// look up, and account for sessions without owning them.
type Handle interface {
	SessionID() uint64
	IsRunning() bool
	Send(p []byte) bool
}

// Registry is a thread-safe id -> Handle map.
type Registry struct {
	mu sync.Mutex
	m  map[uint64]Handle
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{m: make(map[uint64]Handle)}
}

// Insert adds h under its own SessionID. Returns errs.ErrAlreadyExists if
// that id is already present, per spec.md §4.3.
func (r *Registry) Insert(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.SessionID()
	if _, exists := r.m[id]; exists {
		return errs.ErrAlreadyExists
	}
	r.m[id] = h
	return nil
}

// Get returns the Handle for id, or (nil, false) if absent or no longer
// running — "promotion" in spec.md terms degrades to a liveness check
// since Go handles carry no weak/strong distinction.
func (r *Registry) Get(id uint64) (Handle, bool) {
	r.mu.Lock()
	h, ok := r.m[id]
	r.mu.Unlock()

	if !ok || !h.IsRunning() {
		return nil, false
	}
	return h, true
}

// Remove drops id from the registry unconditionally.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	delete(r.m, id)
	r.mu.Unlock()
}

// Len returns the number of registered handles, including ones that have
// stopped running but not yet been Removed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Broadcast sends p to every currently-running session in the registry,
// supplementing spec.md per original_source's sessionmanager.hpp (see
// SPEC_FULL.md's "Supplemented features"). Returns the number of
// sessions the send was accepted by (Send returning true); sessions
// that are not Running are silently skipped, matching Session.Send's
// own no-op-when-not-connected contract.
func (r *Registry) Broadcast(p []byte) int {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.m))
	for _, h := range r.m {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	sent := 0
	for _, h := range handles {
		if h.Send(p) {
			sent++
		}
	}
	return sent
}
