// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"bytes"
	"testing"
)

func checkInvariants(t *testing.T, b *GrowableBuffer) {
	t.Helper()
	if b.Consumed() < 0 || b.Consumed() > b.Filled() || b.Filled() > b.Cap() {
		t.Fatalf("offsets out of order: consumed=%d filled=%d cap=%d",
			b.Consumed(), b.Filled(), b.Cap())
	}
}

func TestGrowableBufferFillConsume(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()
	checkInvariants(t, b)

	b.Grow(16)
	if len(b.Space()) < 16 {
		t.Fatalf("Space() = %d after Grow(16)", len(b.Space()))
	}
	n := copy(b.Space(), "hello world")
	b.DidFill(n)
	checkInvariants(t, b)

	if got := b.UnconsumedBytes(); !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("unconsumed = %q", got)
	}
	b.DidConsume(6)
	checkInvariants(t, b)
	if got := b.UnconsumedBytes(); !bytes.Equal(got, []byte("world")) {
		t.Fatalf("unconsumed after consume = %q", got)
	}
}

func TestGrowableBufferGrowPreservesContents(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()

	b.Grow(8)
	b.DidFill(copy(b.Space(), "abcd"))
	b.Grow(4096)
	if len(b.Space()) < 4096 {
		t.Fatalf("Space() = %d after second Grow", len(b.Space()))
	}
	if got := b.UnconsumedBytes(); !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("contents lost across Grow: %q", got)
	}
}

func TestGrowableBufferCompact(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()

	b.Grow(32)
	b.DidFill(copy(b.Space(), "headerbody"))
	b.DidConsume(6)
	b.Compact()
	checkInvariants(t, b)
	if b.Consumed() != 0 || string(b.UnconsumedBytes()) != "body" {
		t.Fatalf("compact: consumed=%d unconsumed=%q", b.Consumed(), b.UnconsumedBytes())
	}
}

func TestGrowableBufferRewind(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()

	b.Grow(16)
	b.DidFill(copy(b.Space(), "abcdef"))
	b.DidConsume(6)
	b.Rewind(2)
	if string(b.UnconsumedBytes()) != "ef" {
		t.Fatalf("unconsumed after rewind = %q", b.UnconsumedBytes())
	}
	b.Rewind(100)
	checkInvariants(t, b)
	if b.Consumed() != 0 {
		t.Fatalf("rewind past zero: consumed=%d", b.Consumed())
	}
}

func TestGrowableBufferAppend(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()

	b.Append([]byte("sur"))
	b.Append([]byte("plus"))
	checkInvariants(t, b)
	if string(b.UnconsumedBytes()) != "surplus" {
		t.Fatalf("unconsumed = %q", b.UnconsumedBytes())
	}
}

func TestGrowableBufferShrinkToUnconsumed(t *testing.T) {
	b := newGrowableBuffer()
	defer b.Free()

	b.Grow(4096)
	b.DidFill(copy(b.Space(), "headersleftover"))
	b.DidConsume(7)
	b.ShrinkToUnconsumed()
	checkInvariants(t, b)
	if b.Consumed() != 0 || string(b.UnconsumedBytes()) != "leftover" {
		t.Fatalf("shrink: consumed=%d unconsumed=%q", b.Consumed(), b.UnconsumedBytes())
	}

	b.DidConsume(8)
	b.ShrinkToUnconsumed()
	if b.Cap() != 0 || b.Unconsumed() != 0 {
		t.Fatalf("shrink of empty region should release storage: cap=%d", b.Cap())
	}
}
