// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// FramingMode is the body-framing discipline of one response.
type FramingMode int8

const (
	// FramingUnknown .
	FramingUnknown FramingMode = iota
	// FramingFixedLength delimits the body by a byte count.
	FramingFixedLength
	// FramingChunked delimits the body by chunked transfer coding.
	FramingChunked
	// FramingReadUntilClose delimits the body by connection close.
	FramingReadUntilClose
)

func (m FramingMode) String() string {
	switch m {
	case FramingFixedLength:
		return "FixedLength"
	case FramingChunked:
		return "Chunked"
	case FramingReadUntilClose:
		return "ReadUntilClose"
	}
	return "Unknown"
}

// BodyFraming pairs a FramingMode with the byte count that
// FramingFixedLength carries. It is decided once per final response and
// immutable thereafter.
type BodyFraming struct {
	Mode          FramingMode
	ContentLength int64
}

// Response is populated by the engine as response parsing completes.
type Response struct {
	StatusCode int
	Headers    *ResponseHeaders

	Framing BodyFraming

	LocalAddr  net.Addr
	RemoteAddr net.Addr

	// RequestTime is when the request was fully flushed to the
	// transport; ResponseTime is when the first response byte arrived.
	RequestTime  time.Time
	ResponseTime time.Time
}

// ResolveBodyFraming decides the body-framing discipline for a final
// response, in fixed rule order: status codes that never carry a body,
// then the HEAD method, then chunked transfer coding, then a well-formed
// Content-Length, and connection close as the last resort.
func ResolveBodyFraming(method string, h *ResponseHeaders) BodyFraming {
	switch h.StatusCode {
	case 204, 205, 304:
		return BodyFraming{Mode: FramingFixedLength, ContentLength: 0}
	}
	if strings.EqualFold(method, "HEAD") {
		return BodyFraming{Mode: FramingFixedLength, ContentLength: 0}
	}
	if isChunkedTransferEncoding(h) {
		return BodyFraming{Mode: FramingChunked, ContentLength: -1}
	}
	if n, ok := wellFormedContentLength(h.Get(contentLengthHeader)); ok {
		return BodyFraming{Mode: FramingFixedLength, ContentLength: n}
	}
	return BodyFraming{Mode: FramingReadUntilClose, ContentLength: -1}
}

func isChunkedTransferEncoding(h *ResponseHeaders) bool {
	for _, v := range h.Values(transferEncodingHeader) {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "chunked") {
				return true
			}
		}
	}
	return false
}

func wellFormedContentLength(cl string) (int64, bool) {
	cl = strings.Trim(cl, " \t")
	if cl == "" {
		return -1, false
	}
	// digits only: ParseInt alone would also admit a sign.
	for i := 0; i < len(cl); i++ {
		if cl[i] < '0' || cl[i] > '9' {
			return -1, false
		}
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return -1, false
	}
	return n, true
}
