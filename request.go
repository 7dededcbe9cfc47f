// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"errors"
	"io"
)

// BodySource supplies request body bytes in sequential slices. Read
// follows io.Reader conventions; the engine stops pulling once EOF
// reports true. At most one Read is in flight at a time.
type BodySource interface {
	Read(p []byte) (int, error)

	// EOF reports whether all body bytes have been consumed.
	EOF() bool

	// Size returns the total body size in bytes, or -1 when the body is
	// chunked and the size is not known up front.
	Size() int64

	// Chunked reports whether the body must be sent with chunked framing.
	Chunked() bool

	// InMemory reports whether the whole body is already resident in
	// memory. Only in-memory bodies are eligible for merging with the
	// header write.
	InMemory() bool
}

// BytesBody is a fixed-size, fully in-memory body.
type BytesBody struct {
	buf   []byte
	index int
}

// NewBytesBody .
func NewBytesBody(b []byte) *BytesBody {
	return &BytesBody{buf: b}
}

// Read implements BodySource.
func (b *BytesBody) Read(p []byte) (int, error) {
	if b.index >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.index:])
	b.index += n
	return n, nil
}

// EOF implements BodySource.
func (b *BytesBody) EOF() bool {
	return b.index >= len(b.buf)
}

// Size implements BodySource.
func (b *BytesBody) Size() int64 {
	return int64(len(b.buf))
}

// Chunked implements BodySource.
func (b *BytesBody) Chunked() bool {
	return false
}

// InMemory implements BodySource.
func (b *BytesBody) InMemory() bool {
	return true
}

// ReaderBody streams a body from an io.Reader. With size >= 0 the body
// is sent as size raw bytes; with size < 0 it is sent chunked and ends
// when the reader returns io.EOF.
type ReaderBody struct {
	r    io.Reader
	size int64
	eof  bool
}

// NewReaderBody .
func NewReaderBody(r io.Reader, size int64) *ReaderBody {
	return &ReaderBody{r: r, size: size}
}

// Read implements BodySource.
func (b *ReaderBody) Read(p []byte) (int, error) {
	if b.eof {
		return 0, io.EOF
	}
	n, err := b.r.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			b.eof = true
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		return n, err
	}
	return n, nil
}

// EOF implements BodySource.
func (b *ReaderBody) EOF() bool {
	return b.eof
}

// Size implements BodySource.
func (b *ReaderBody) Size() int64 {
	return b.size
}

// Chunked implements BodySource.
func (b *ReaderBody) Chunked() bool {
	return b.size < 0
}

// InMemory implements BodySource.
func (b *ReaderBody) InMemory() bool {
	return false
}
