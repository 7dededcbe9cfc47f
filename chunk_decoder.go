// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"strconv"
	"strings"

	"github.com/hxkit/h1wire/mempool"
)

// maxChunkLineSize bounds a single chunk-size or trailer line. A line
// that long is not legitimate framing.
const maxChunkLineSize = 4096

// ChunkedDecoder strips chunked transfer framing from a byte stream fed
// to it in arbitrary segments. Filter rewrites each segment in place so
// the decoded payload ends up at the front; framing bytes are dropped.
// After the terminal chunk is seen, any further bytes are retained
// directly behind the payload and counted by BytesAfterEOF so the caller
// can keep them as pipelining carryover.
type ChunkedDecoder struct {
	chunkRemaining int
	lineBuf        []byte

	// the CRLF that closes a chunk's data is still owed.
	terminatorPending bool

	reachedLastChunk bool
	reachedEOF       bool
	bytesAfterEOF    int
}

// NewChunkedDecoder .
func NewChunkedDecoder() *ChunkedDecoder {
	return &ChunkedDecoder{}
}

// ReachedEOF reports whether the terminal zero-length chunk and its
// closing blank line have been consumed.
func (d *ChunkedDecoder) ReachedEOF() bool {
	return d.reachedEOF
}

// BytesAfterEOF returns the total number of bytes seen after end-of-body.
func (d *ChunkedDecoder) BytesAfterEOF() int {
	return d.bytesAfterEOF
}

// Filter consumes p, compacts decoded payload bytes to p[:n] and returns
// n. Bytes received after end-of-body are moved to just past p[:n].
// n == 0 with ReachedEOF() == false means the segment held only framing
// bytes and more input is needed.
func (d *ChunkedDecoder) Filter(p []byte) (int, error) {
	out := 0
	i := 0
	surplus := 0 // post-EOF bytes retained from this segment
	for i < len(p) {
		switch {
		case d.chunkRemaining > 0:
			n := d.chunkRemaining
			if n > len(p)-i {
				n = len(p) - i
			}
			copy(p[out:], p[i:i+n])
			out += n
			i += n
			d.chunkRemaining -= n
			if d.chunkRemaining == 0 {
				d.terminatorPending = true
			}
		case d.reachedEOF:
			n := copy(p[out+surplus:], p[i:]) // keep surplus behind payload
			surplus += n
			d.bytesAfterEOF += n
			i = len(p)
		default:
			consumed, err := d.scanForChunkRemaining(p[i:])
			if err != nil {
				return 0, err
			}
			i += consumed
		}
	}
	return out, nil
}

// scanForChunkRemaining consumes framing bytes from b until a full line
// is available, then interprets it according to where we are in the
// chunk grammar. Partial lines are cached in lineBuf across calls.
func (d *ChunkedDecoder) scanForChunkRemaining(b []byte) (int, error) {
	idx := -1
	for j, c := range b {
		if c == '\n' {
			idx = j
			break
		}
	}
	if idx < 0 {
		if len(d.lineBuf)+len(b) > maxChunkLineSize {
			return 0, ErrInvalidChunkedEncoding
		}
		if d.lineBuf == nil {
			d.lineBuf = mempool.Malloc(0)
		}
		d.lineBuf = mempool.Append(d.lineBuf, b...)
		return len(b), nil
	}

	line := b[:idx]
	if len(d.lineBuf) > 0 {
		if len(d.lineBuf)+len(line) > maxChunkLineSize {
			return 0, ErrInvalidChunkedEncoding
		}
		d.lineBuf = mempool.Append(d.lineBuf, line...)
		line = d.lineBuf
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	err := d.handleLine(line)
	if d.lineBuf != nil {
		mempool.Free(d.lineBuf)
		d.lineBuf = nil
	}
	return idx + 1, err
}

func (d *ChunkedDecoder) handleLine(line []byte) error {
	switch {
	case d.terminatorPending:
		if len(line) != 0 {
			return ErrInvalidChunkedEncoding
		}
		d.terminatorPending = false
	case d.reachedLastChunk:
		// trailer section: lines are skipped, the blank line ends the body.
		if len(line) == 0 {
			d.reachedEOF = true
		}
	default:
		if len(line) == 0 {
			// tolerate a stray blank line between chunks; some servers
			// emit an extra CRLF.
			return nil
		}
		size, err := parseChunkSize(string(line))
		if err != nil {
			return err
		}
		if size == 0 {
			d.reachedLastChunk = true
		} else {
			d.chunkRemaining = size
		}
	}
	return nil
}

func parseChunkSize(s string) (int, error) {
	// drop chunk extensions and trailing spaces.
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return -1, ErrInvalidChunkedEncoding
	}
	// hex digits only: ParseInt alone would also admit a sign.
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return -1, ErrInvalidChunkedEncoding
		}
	}
	size, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return -1, ErrInvalidChunkedEncoding
	}
	if size > maxInt {
		return -1, ErrInvalidChunkedEncoding
	}
	return int(size), nil
}
