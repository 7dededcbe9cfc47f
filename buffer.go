// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"github.com/hxkit/h1wire/mempool"
)

// GrowableBuffer accumulates transport bytes across parse phases. It
// tracks two offsets into its storage: filled (bytes written so far) and
// consumed (bytes already handed to a parsing phase). The unconsumed
// region buf[consumed:filled] is what the parser still has to look at,
// and is also where pipelining carryover between exchanges lives.
//
// 0 <= consumed <= filled <= Cap() holds at all times.
type GrowableBuffer struct {
	buf      []byte
	filled   int
	consumed int
}

func newGrowableBuffer() *GrowableBuffer {
	return &GrowableBuffer{}
}

// Cap returns the allocated capacity in bytes.
func (b *GrowableBuffer) Cap() int {
	return len(b.buf)
}

// Filled returns the write offset.
func (b *GrowableBuffer) Filled() int {
	return b.filled
}

// Consumed returns the consumed offset.
func (b *GrowableBuffer) Consumed() int {
	return b.consumed
}

// Unconsumed returns the number of bytes filled but not yet consumed.
func (b *GrowableBuffer) Unconsumed() int {
	return b.filled - b.consumed
}

// UnconsumedBytes returns the unconsumed region. The slice is
// invalidated by Grow, Append, Compact and ShrinkToUnconsumed.
func (b *GrowableBuffer) UnconsumedBytes() []byte {
	return b.buf[b.consumed:b.filled]
}

// Space returns the unfilled tail of the buffer for a transport read to
// land in. Call Grow first if more room is needed.
func (b *GrowableBuffer) Space() []byte {
	return b.buf[b.filled:]
}

// Grow ensures at least n bytes of unfilled space.
func (b *GrowableBuffer) Grow(n int) {
	if len(b.buf)-b.filled >= n {
		return
	}
	if b.buf == nil {
		b.buf = mempool.Malloc(n)
		return
	}
	b.buf = mempool.Realloc(b.buf, b.filled+n)
}

// DidFill advances the write offset after n bytes landed in Space().
func (b *GrowableBuffer) DidFill(n int) {
	b.filled += n
	if b.filled > len(b.buf) {
		b.filled = len(b.buf)
	}
}

// DidConsume advances the consumed offset.
func (b *GrowableBuffer) DidConsume(n int) {
	b.consumed += n
	if b.consumed > b.filled {
		b.consumed = b.filled
	}
}

// Rewind marks the last n consumed bytes as unconsumed again.
func (b *GrowableBuffer) Rewind(n int) {
	b.consumed -= n
	if b.consumed < 0 {
		b.consumed = 0
	}
}

// Append copies p into the buffer past the filled offset, growing as
// needed. Used to stash carryover bytes that were read into a caller's
// buffer.
func (b *GrowableBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.Grow(len(p))
	copy(b.buf[b.filled:], p)
	b.filled += len(p)
}

// Compact moves the unconsumed region to the front of the storage.
func (b *GrowableBuffer) Compact() {
	if b.consumed == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.consumed:b.filled])
	b.filled = n
	b.consumed = 0
}

// ShrinkToUnconsumed compacts and trims capacity down to just the
// unconsumed overflow bytes, releasing the header-sized allocation once
// header parsing no longer needs it.
func (b *GrowableBuffer) ShrinkToUnconsumed() {
	n := b.filled - b.consumed
	if n == 0 {
		b.Free()
		return
	}
	dst := mempool.Malloc(n)
	copy(dst, b.buf[b.consumed:b.filled])
	mempool.Free(b.buf)
	b.buf = dst
	b.filled = n
	b.consumed = 0
}

// Free releases the storage back to the pool and resets the offsets.
func (b *GrowableBuffer) Free() {
	if b.buf != nil {
		mempool.Free(b.buf)
		b.buf = nil
	}
	b.filled = 0
	b.consumed = 0
}
