// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"strconv"
)

// chunkFrameOverhead is the most bytes chunk framing can add around one
// payload: the hex size line, its CRLF, and the trailing CRLF.
const chunkFrameOverhead = 12

// EncodeChunk writes payload into dst as a single wire-format chunk:
// hex length, CRLF, payload bytes, CRLF. An empty payload encodes the
// terminal chunk "0\r\n\r\n". It returns the number of bytes written,
// or ErrInvalidArgument when dst cannot hold the framed payload.
func EncodeChunk(payload, dst []byte) (int, error) {
	if len(dst) < len(payload)+chunkFrameOverhead {
		return 0, ErrInvalidArgument
	}
	b := strconv.AppendUint(dst[:0], uint64(len(payload)), 16)
	b = append(b, '\r', '\n')
	b = append(b, payload...)
	// for the terminal chunk this CRLF doubles as the end of the empty
	// trailer section, yielding "0\r\n\r\n".
	b = append(b, '\r', '\n')
	return len(b), nil
}
