// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hxkit/h1wire/logging"
	"github.com/hxkit/h1wire/mempool"
)

const (
	// MergeThreshold is the largest headers-plus-body size that is sent
	// as a single write. Small in-memory request bodies ride along with
	// the header bytes to save a syscall and a packet.
	MergeThreshold = 1400

	// DefaultMaxHeaderBytes caps the accumulated response header block.
	DefaultMaxHeaderBytes = 256 * 1024

	// HeaderBufIncrement is the growth step of the header read buffer.
	HeaderBufIncrement = 4096

	// requestBodyBufSize is how much request body is pulled per write.
	requestBodyBufSize = 16 * 1024
)

const maxUint = ^uint(0)
const maxInt = int64(maxUint >> 1)

var errNeedMoreData = errors.New("need more data")

const (
	opNone int8 = iota
	opRead
	opWrite
)

type ioResult struct {
	n   int
	err error
}

// Stream frames HTTP/1.x exchanges over a Conn: it turns a request
// description into wire bytes and a stream of response bytes into parsed
// headers and correctly delimited body bytes. One Stream runs one
// exchange at a time; after an exchange reaches Done the next
// SendRequest reuses any buffered carryover, which is what makes
// pipelined responses on the same connection work.
//
// Stream is single-threaded and cooperative: it never spawns goroutines
// or locks, and it keeps at most one transport operation in flight. All
// methods and transport completion callbacks must run serialized.
type Stream struct {
	conn Conn

	// MaxHeaderBytes bounds the response header block. Changing it after
	// the first ReadResponseHeaders has no effect on that exchange.
	MaxHeaderBytes int

	state     int8
	pendingOp int8

	readBuf *GrowableBuffer

	// sending
	method        string
	body          BodySource
	outBuf        []byte // bytes being written; a view of hdrBuf, bodyBuf or chunkBuf
	outPos        int
	hdrBuf        []byte // request line + header block
	bodyBuf       []byte // request body pull scratch
	chunkBuf      []byte // chunk encode scratch
	lastChunkSent bool

	// receiving
	response    *Response
	hdrStart    int // status-line offset within the unconsumed region, -1 unknown
	bodyLeft    int64
	chunkDec    *ChunkedDecoder
	userBuf     []byte
	servedLocal bool // last body read came from readBuf, not the transport

	bytesSent     int64
	bytesReceived int64

	sendDone    func(error)
	headersDone func(error)
	bodyDone    func(int, error)
}

// NewStream .
func NewStream(conn Conn) *Stream {
	return &Stream{
		conn:           conn,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		state:          stateNone,
		readBuf:        newGrowableBuffer(),
		hdrStart:       -1,
	}
}

// Response returns the descriptor of the current exchange. Its header
// fields are valid once ReadResponseHeaders completes; on a mid-headers
// close it carries the best-effort partial result.
func (s *Stream) Response() *Response {
	return s.response
}

// BytesSent returns the request bytes flushed to the transport so far.
func (s *Stream) BytesSent() int64 {
	return s.bytesSent
}

// BytesReceived returns the response bytes read off the transport so far.
func (s *Stream) BytesReceived() int64 {
	return s.bytesReceived
}

// BufferedBytes returns how many response bytes are buffered but not yet
// delivered, i.e. pipelining carryover plus unparsed input.
func (s *Stream) BufferedBytes() int {
	return s.readBuf.Unconsumed()
}

// Close releases the engine's buffers and makes further operations fail
// with ErrInvalidState. Closing the transport is the caller's job.
func (s *Stream) Close() {
	s.releaseSendBuffers()
	s.readBuf.Free()
	s.state = stateClosed
}

// SendRequest transmits the request line, header block and optional body.
// headers holds zero or more "Name: value" lines each terminated by CRLF;
// the engine appends the blank line. The result is either returned
// synchronously (nil or an error), or ErrPending is returned and done is
// later invoked exactly once with the final result.
func (s *Stream) SendRequest(requestLine, headers string, body BodySource, done func(error)) error {
	if s.state != stateNone && s.state != stateDone {
		return ErrInvalidState
	}

	s.method = requestMethod(requestLine)
	s.body = body
	s.response = &Response{RequestTime: time.Now()}
	s.hdrStart = -1
	s.bodyLeft = 0
	s.chunkDec = nil
	s.lastChunkSent = false

	headersLen := len(requestLine) + 2 + len(headers) + 2
	wire := mempool.Malloc(headersLen)[:0]
	wire = mempool.AppendString(wire, requestLine)
	wire = mempool.Append(wire, '\r', '\n')
	wire = mempool.AppendString(wire, headers)
	wire = mempool.Append(wire, '\r', '\n')

	if body != nil && !body.Chunked() && body.InMemory() &&
		int64(headersLen)+body.Size() <= MergeThreshold {
		total := headersLen + int(body.Size())
		wire = mempool.Realloc(wire, total)[:headersLen]
		for !body.EOF() && len(wire) < total {
			n, err := body.Read(wire[len(wire):total])
			if err != nil && !errors.Is(err, io.EOF) {
				mempool.Free(wire)
				return err
			}
			if n == 0 {
				break
			}
			wire = wire[:len(wire)+n]
		}
		s.body = nil // the body rides along with the header write
	}

	s.hdrBuf = wire
	s.outBuf = wire
	s.outPos = 0
	s.state = stateSendingHeaders

	res := s.doLoop(ioResult{})
	if res.err == ErrPending {
		s.sendDone = done
		return ErrPending
	}
	if res.err != nil {
		s.failed()
	}
	return res.err
}

// ReadResponseHeaders reads and parses the next response header block.
// For a 1xx status it completes successfully without entering body
// framing; call it again for the next block. The result is synchronous,
// or ErrPending with done invoked later.
func (s *Stream) ReadResponseHeaders(done func(error)) error {
	if s.state != stateRequestSent {
		return ErrInvalidState
	}
	s.state = stateReadHeaders

	// pipelining: a previous exchange may have buffered this response
	// already, entirely or in part.
	if s.readBuf.Unconsumed() > 0 {
		if s.response.ResponseTime.IsZero() {
			s.response.ResponseTime = time.Now()
		}
		err := s.parseHeaders()
		if err == nil {
			return nil
		}
		if err != errNeedMoreData {
			s.failed()
			return err
		}
		s.state = stateReadHeaders
	}

	res := s.doLoop(ioResult{})
	if res.err == ErrPending {
		s.headersDone = done
		return ErrPending
	}
	if res.err != nil {
		s.failed()
	}
	return res.err
}

// ReadResponseBody delivers body bytes into p, hiding the framing
// discipline. It returns the count synchronously, or (0, ErrPending)
// with done invoked later. A normal end of body is (0, io.EOF).
func (s *Stream) ReadResponseBody(p []byte, done func(int, error)) (int, error) {
	switch s.state {
	case stateDone:
		return 0, io.EOF
	case stateBodyPending:
	default:
		return 0, ErrInvalidState
	}
	if len(p) == 0 {
		return 0, ErrInvalidArgument
	}

	s.userBuf = p
	s.state = stateReadBody
	res := s.doLoop(ioResult{})
	if res.err == ErrPending {
		s.bodyDone = done
		return 0, ErrPending
	}
	s.userBuf = nil
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		s.failed()
	}
	return res.n, res.err
}

// onIOComplete resumes the driver loop when a pending transport
// operation finishes.
func (s *Stream) onIOComplete(n int, err error) {
	s.pendingOp = opNone
	res := s.doLoop(ioResult{n: n, err: err})
	if res.err == ErrPending {
		return
	}
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		s.failed()
	}
	s.dispatch(res)
}

func (s *Stream) dispatch(res ioResult) {
	switch {
	case s.sendDone != nil:
		cb := s.sendDone
		s.sendDone = nil
		cb(res.err)
	case s.headersDone != nil:
		cb := s.headersDone
		s.headersDone = nil
		cb(res.err)
	case s.bodyDone != nil:
		cb := s.bodyDone
		s.bodyDone = nil
		s.userBuf = nil
		cb(res.n, res.err)
	}
}

// doLoop advances the state machine for as long as transport operations
// complete synchronously. It stops on ErrPending, on an error, and in
// the quiescent states that hand control back to the caller.
func (s *Stream) doLoop(res ioResult) ioResult {
	for {
		switch s.state {
		case stateSendingHeaders:
			res = s.doSendHeaders(res)
		case stateSendingChunkedBody:
			res = s.doSendChunkedBody(res)
		case stateSendingNonChunkedBody:
			res = s.doSendNonChunkedBody(res)
		case stateReadHeaders:
			res = s.doReadHeaders()
		case stateReadHeadersComplete:
			res = s.doReadHeadersComplete(res)
		case stateReadBody:
			res = s.doReadBody()
		case stateReadBodyComplete:
			res = s.doReadBodyComplete(res)
		default:
			logging.Error("h1wire: resumed in unexpected state %s", stateName(s.state))
			return ioResult{err: ErrInvalidState}
		}
		if res.err != nil {
			if !errors.Is(res.err, io.EOF) {
				return res
			}
			// an EOF read result is not final yet: the completion states
			// classify it (empty response, truncated body, clean end).
			switch s.state {
			case stateReadHeadersComplete, stateReadBodyComplete:
			default:
				return res
			}
			continue
		}
		switch s.state {
		case stateRequestSent, stateBodyPending, stateDone, stateClosed:
			return res
		}
	}
}

func (s *Stream) writeSome(p []byte) ioResult {
	if s.pendingOp != opNone {
		return ioResult{err: ErrInvalidState}
	}
	s.pendingOp = opWrite
	n, err := s.conn.Write(p, s.onIOComplete)
	if err == ErrPending {
		return ioResult{err: ErrPending}
	}
	s.pendingOp = opNone
	return ioResult{n: n, err: err}
}

func (s *Stream) readSome(p []byte) ioResult {
	if s.pendingOp != opNone {
		return ioResult{err: ErrInvalidState}
	}
	s.pendingOp = opRead
	n, err := s.conn.Read(p, s.onIOComplete)
	if err == ErrPending {
		return ioResult{err: ErrPending}
	}
	s.pendingOp = opNone
	return ioResult{n: n, err: err}
}

func (s *Stream) doSendHeaders(res ioResult) ioResult {
	s.outPos += res.n
	s.bytesSent += int64(res.n)
	if s.outPos < len(s.outBuf) {
		return s.writeSome(s.outBuf[s.outPos:])
	}

	mempool.Free(s.hdrBuf)
	s.hdrBuf = nil
	s.outBuf = nil
	s.outPos = 0

	switch {
	case s.body == nil:
		s.requestFlushed()
	case s.body.Chunked():
		s.bodyBuf = mempool.Malloc(requestBodyBufSize)
		s.chunkBuf = mempool.Malloc(requestBodyBufSize + chunkFrameOverhead)
		s.state = stateSendingChunkedBody
	default:
		s.bodyBuf = mempool.Malloc(requestBodyBufSize)
		s.state = stateSendingNonChunkedBody
	}
	return ioResult{}
}

func (s *Stream) doSendChunkedBody(res ioResult) ioResult {
	s.outPos += res.n
	s.bytesSent += int64(res.n)
	if s.outPos < len(s.outBuf) {
		return s.writeSome(s.outBuf[s.outPos:])
	}
	if s.lastChunkSent {
		s.releaseSendBuffers()
		s.requestFlushed()
		return ioResult{}
	}

	// the previous chunk is fully on the wire; only now pull the next
	// slice from the body source.
	nr := 0
	if !s.body.EOF() {
		var err error
		nr, err = s.body.Read(s.bodyBuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return ioResult{err: err}
		}
	}
	if nr == 0 && !s.body.EOF() {
		return ioResult{err: ErrInvalidArgument}
	}
	if nr == 0 {
		s.lastChunkSent = true
	}

	en, err := EncodeChunk(s.bodyBuf[:nr], s.chunkBuf)
	if err != nil {
		return ioResult{err: err}
	}
	s.outBuf = s.chunkBuf[:en]
	s.outPos = 0
	return s.writeSome(s.outBuf)
}

func (s *Stream) doSendNonChunkedBody(res ioResult) ioResult {
	s.outPos += res.n
	s.bytesSent += int64(res.n)
	if s.outPos < len(s.outBuf) {
		return s.writeSome(s.outBuf[s.outPos:])
	}

	nr := 0
	if !s.body.EOF() {
		var err error
		nr, err = s.body.Read(s.bodyBuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return ioResult{err: err}
		}
	}
	if nr == 0 {
		s.releaseSendBuffers()
		s.requestFlushed()
		return ioResult{}
	}

	s.outBuf = s.bodyBuf[:nr]
	s.outPos = 0
	return s.writeSome(s.outBuf)
}

func (s *Stream) doReadHeaders() ioResult {
	if len(s.readBuf.Space()) == 0 {
		s.readBuf.Grow(HeaderBufIncrement)
	}
	s.state = stateReadHeadersComplete
	return s.readSome(s.readBuf.Space())
}

func (s *Stream) doReadHeadersComplete(res ioResult) ioResult {
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return res
	}
	if res.n == 0 {
		// transport closed while waiting for headers
		if s.readBuf.Unconsumed() == 0 {
			return ioResult{err: ErrEmptyResponse}
		}
		s.parsePartialHeaders()
		logging.Debug("h1wire: connection closed with partial response headers")
		return ioResult{err: ErrConnectionClosed}
	}

	s.readBuf.DidFill(res.n)
	s.bytesReceived += int64(res.n)
	if s.response.ResponseTime.IsZero() {
		s.response.ResponseTime = time.Now()
	}

	err := s.parseHeaders()
	if err == errNeedMoreData {
		s.state = stateReadHeaders
		return ioResult{}
	}
	return ioResult{err: err}
}

// parseHeaders tries to complete header parsing from the unconsumed
// bytes. It returns errNeedMoreData until the terminating blank line has
// arrived, and on success leaves the stream in stateRequestSent (1xx),
// stateBodyPending, or stateDone (no body).
func (s *Stream) parseHeaders() error {
	b := s.readBuf.UnconsumedBytes()

	if s.hdrStart < 0 {
		s.hdrStart = locateStartOfStatusLine(b)
		if s.hdrStart < 0 {
			if len(b) < minBytesForStatusLine {
				return errNeedMoreData
			}
			// no status line in sight: header-less HTTP/0.9 body
			return s.commitHTTP09()
		}
	}

	end := locateEndOfHeaders(b, s.hdrStart)
	if end < 0 {
		if len(b) >= s.MaxHeaderBytes {
			return ErrHeadersTooLarge
		}
		return errNeedMoreData
	}

	h, err := parseResponseHeaders(b[s.hdrStart:end], false)
	if err != nil {
		return err
	}
	if err := checkHeaderSmuggling(h); err != nil {
		logging.Warn("h1wire: rejecting response with duplicate framing headers: %v", err)
		return err
	}

	s.populateResponse(h)
	s.readBuf.DidConsume(end)
	s.hdrStart = -1

	if h.StatusCode >= 100 && h.StatusCode < 200 {
		// informational; the final response's header block follows.
		s.state = stateRequestSent
		return nil
	}

	s.response.Framing = ResolveBodyFraming(s.method, h)
	switch s.response.Framing.Mode {
	case FramingChunked:
		s.chunkDec = NewChunkedDecoder()
		s.state = stateBodyPending
	case FramingFixedLength:
		s.bodyLeft = s.response.Framing.ContentLength
		if s.bodyLeft == 0 {
			s.state = stateDone
		} else {
			s.state = stateBodyPending
		}
	default:
		s.state = stateBodyPending
	}

	// header parsing is over; keep only the overflow bytes around.
	s.readBuf.ShrinkToUnconsumed()
	return nil
}

func (s *Stream) commitHTTP09() error {
	h := &ResponseHeaders{Proto: "HTTP/0.9", StatusCode: 200, Reason: "OK"}
	s.populateResponse(h)
	s.response.Framing = BodyFraming{Mode: FramingReadUntilClose, ContentLength: -1}
	s.state = stateBodyPending
	return nil
}

// parsePartialHeaders makes whatever header-ish text arrived before the
// close available on the Response. The close error is still surfaced.
func (s *Stream) parsePartialHeaders() {
	b := s.readBuf.UnconsumedBytes()
	start := s.hdrStart
	if start < 0 {
		start = locateStartOfStatusLine(b)
	}
	if start < 0 {
		return
	}
	if h, err := parseResponseHeaders(b[start:], true); err == nil {
		s.populateResponse(h)
	}
}

func (s *Stream) populateResponse(h *ResponseHeaders) {
	s.response.Headers = h
	s.response.StatusCode = h.StatusCode
	s.response.LocalAddr = s.conn.LocalAddr()
	s.response.RemoteAddr = s.conn.RemoteAddr()
}

func (s *Stream) doReadBody() ioResult {
	s.state = stateReadBodyComplete

	// leftovers from header parsing are always drained before the
	// transport is touched again.
	if s.readBuf.Unconsumed() > 0 {
		s.servedLocal = true
		b := s.readBuf.UnconsumedBytes()
		n := len(b)
		if n > len(s.userBuf) {
			n = len(s.userBuf)
		}
		if s.response.Framing.Mode == FramingFixedLength && int64(n) > s.bodyLeft {
			// bytes past the body belong to the next response
			n = int(s.bodyLeft)
		}
		copy(s.userBuf, b[:n])
		s.readBuf.DidConsume(n)
		return ioResult{n: n}
	}

	// zero-copy: read straight into the caller's buffer.
	s.servedLocal = false
	return s.readSome(s.userBuf)
}

func (s *Stream) doReadBodyComplete(res ioResult) ioResult {
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return res
	}
	if !s.servedLocal {
		s.bytesReceived += int64(res.n)
	}
	closed := res.n == 0

	switch s.response.Framing.Mode {
	case FramingChunked:
		return s.filterChunkedBody(res.n, closed)

	case FramingFixedLength:
		if closed {
			return ioResult{err: ErrContentLengthMismatch}
		}
		n := res.n
		if int64(n) > s.bodyLeft {
			// a transport read pulled in the start of the next response
			rem := int(s.bodyLeft)
			s.readBuf.Append(s.userBuf[rem:n])
			n = rem
		}
		s.bodyLeft -= int64(n)
		if s.bodyLeft == 0 {
			s.finishBody()
		} else {
			s.state = stateBodyPending
		}
		return ioResult{n: n}

	default: // FramingReadUntilClose
		if closed {
			s.finishBody()
			return ioResult{err: io.EOF}
		}
		s.state = stateBodyPending
		return ioResult{n: res.n}
	}
}

func (s *Stream) filterChunkedBody(n int, closed bool) ioResult {
	if closed {
		return ioResult{err: ErrIncompleteChunkedEncoding}
	}

	prev := s.chunkDec.BytesAfterEOF()
	dataLen, err := s.chunkDec.Filter(s.userBuf[:n])
	if err != nil {
		return ioResult{err: err}
	}

	if s.chunkDec.ReachedEOF() {
		extra := s.chunkDec.BytesAfterEOF() - prev
		if s.servedLocal {
			// those bytes are still sitting in readBuf right behind the
			// consumed offset; put them back in wire order.
			s.readBuf.Rewind(extra)
		} else {
			s.readBuf.Append(s.userBuf[dataLen : dataLen+extra])
		}
		s.finishBody()
		if dataLen == 0 {
			return ioResult{err: io.EOF}
		}
		return ioResult{n: dataLen}
	}

	if dataLen == 0 {
		// the segment was all framing; keep reading.
		s.state = stateReadBody
		return ioResult{}
	}
	s.state = stateBodyPending
	return ioResult{n: dataLen}
}

// finishBody ends the exchange and compacts carryover to the front of
// the buffer for the next exchange on this connection.
func (s *Stream) finishBody() {
	s.readBuf.Compact()
	s.releaseSendBuffers()
	s.state = stateDone
}

// requestFlushed records the moment the last request byte hit the
// transport and hands control back for header reading.
func (s *Stream) requestFlushed() {
	s.response.RequestTime = time.Now()
	s.state = stateRequestSent
}

func (s *Stream) failed() {
	s.releaseSendBuffers()
	s.state = stateClosed
}

func (s *Stream) releaseSendBuffers() {
	if s.hdrBuf != nil {
		mempool.Free(s.hdrBuf)
		s.hdrBuf = nil
	}
	if s.bodyBuf != nil {
		mempool.Free(s.bodyBuf)
		s.bodyBuf = nil
	}
	if s.chunkBuf != nil {
		mempool.Free(s.chunkBuf)
		s.chunkBuf = nil
	}
	s.outBuf = nil
	s.outPos = 0
	s.body = nil
}

func requestMethod(requestLine string) string {
	if i := strings.IndexByte(requestLine, ' '); i > 0 {
		return requestLine[:i]
	}
	return requestLine
}
