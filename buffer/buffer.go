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

// Package buffer implements the linear read/write cursor buffer used by
// a Session's receive loop, grounded on the original implementation's
// DataBuffer (original_source/databuffer/databuffer.hpp): a single
// growable byte slice with independent read and write cursors, a
// Compact that slides unread bytes to the front, and a 1.25x growth
// strategy on overflow.
package buffer

import "errors"

// ErrShortRead is returned by Read when fewer than n bytes are available
// between the read cursor and the write cursor.
var ErrShortRead = errors.New("buffer: short read")

const growthFactor = 1.25

// ByteBuffer is a linear byte store with read_pos <= write_pos <= capacity.
// It is not safe for concurrent use; callers serialize access (a Session
// only ever touches its own ByteBuffer from its owning Reactor goroutine).
type ByteBuffer struct {
	data    []byte
	readPos int
	writePos int
}

// New returns a ByteBuffer with the given initial capacity.
func New(capacity int) *ByteBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &ByteBuffer{data: make([]byte, capacity)}
}

// Write appends n bytes from src, growing capacity by 1.25x whenever the
// tail does not have enough room. Returns the number of bytes written
// (always n; growth never fails short of an allocation panic, matching
// the source's "naive reallocation" note in spec.md §4.1).
func (b *ByteBuffer) Write(src []byte) int {
	n := len(src)
	b.ensure(b.writePos + n)
	copy(b.data[b.writePos:], src)
	b.writePos += n
	return n
}

// Read copies n bytes starting at readPos into dst and advances readPos.
// It fails with ErrShortRead if readPos+n would exceed writePos; dst must
// have length >= n.
func (b *ByteBuffer) Read(dst []byte, n int) (int, error) {
	if b.readPos+n > b.writePos {
		return 0, ErrShortRead
	}
	copy(dst, b.data[b.readPos:b.readPos+n])
	b.readPos += n
	return n, nil
}

// Compact shifts the unread region [readPos, writePos) to the start of the
// backing array and resets readPos to 0. Idempotent: calling Compact twice
// in a row, or calling it when readPos is already 0, is a no-op.
func (b *ByteBuffer) Compact() {
	if b.readPos == 0 {
		return
	}
	n := copy(b.data, b.data[b.readPos:b.writePos])
	b.writePos = n
	b.readPos = 0
}

// WriteSlice returns the writable tail [writePos, capacity) so callers can
// hand it directly to a net.Conn.Read as the destination buffer.
func (b *ByteBuffer) WriteSlice() []byte {
	return b.data[b.writePos:]
}

// Advance moves writePos forward by n after bytes were written directly
// into the slice returned by WriteSlice (the stream-mode receive loop's
// async-read-some completion path).
func (b *ByteBuffer) Advance(n int) {
	b.writePos += n
}

// ReadSlice returns the readable region [readPos, writePos) without
// copying or advancing the cursor; callers that consume it must call
// Skip(len(slice)) or Compact afterward.
func (b *ByteBuffer) ReadSlice() []byte {
	return b.data[b.readPos:b.writePos]
}

// Skip advances readPos by n without copying, used after a caller has
// consumed bytes returned by ReadSlice directly.
func (b *ByteBuffer) Skip(n int) {
	b.readPos += n
}

// ReadPos, WritePos, Capacity, Available expose the cursor bookkeeping for
// tests and for callers deciding whether to grow before a read-some.
func (b *ByteBuffer) ReadPos() int     { return b.readPos }
func (b *ByteBuffer) WritePos() int    { return b.writePos }
func (b *ByteBuffer) Capacity() int    { return len(b.data) }
func (b *ByteBuffer) Available() int   { return len(b.data) - b.writePos }
func (b *ByteBuffer) Unread() int      { return b.writePos - b.readPos }

// Grow ensures at least n more bytes of tail room exist past writePos,
// compacting first if that alone would suffice.
func (b *ByteBuffer) Grow(n int) {
	if b.Available() >= n {
		return
	}
	b.Compact()
	b.ensure(b.writePos + n)
}

func (b *ByteBuffer) ensure(need int) {
	if len(b.data) >= need {
		return
	}
	if cap(b.data) >= need {
		b.data = b.data[:need]
		return
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = need
	}
	for newCap < need {
		next := int(float64(newCap) * growthFactor)
		if next <= newCap {
			next = newCap + 1
		}
		newCap = next
	}
	grown := make([]byte, need, newCap)
	copy(grown, b.data)
	b.data = grown
}
