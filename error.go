// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"errors"
	"fmt"
)

// ErrPending is returned by Conn.Read, Conn.Write and by the Stream
// operations when the call could not complete immediately. The completion
// callback passed to the call will be invoked exactly once with the final
// result.
var ErrPending = errors.New("operation pending")

var (
	// ErrConnectionClosed .
	ErrConnectionClosed = errors.New("connection closed prematurely")

	// ErrEmptyResponse reports a connection that closed before a single
	// response byte arrived. It is a kind of ErrConnectionClosed.
	ErrEmptyResponse = fmt.Errorf("empty response: %w", ErrConnectionClosed)

	// ErrContentLengthMismatch reports a fixed-length body cut short by a
	// connection close. It is a kind of ErrConnectionClosed.
	ErrContentLengthMismatch = fmt.Errorf("content-length mismatch: %w", ErrConnectionClosed)

	// ErrIncompleteChunkedEncoding reports a connection that closed before
	// the terminal chunk arrived. It is a kind of ErrConnectionClosed.
	ErrIncompleteChunkedEncoding = fmt.Errorf("incomplete chunked encoding: %w", ErrConnectionClosed)
)

var (
	// ErrHeadersTooLarge .
	ErrHeadersTooLarge = errors.New("response headers too large")

	// ErrAmbiguousContentLength reports multiple differing Content-Length
	// values with no Transfer-Encoding present.
	ErrAmbiguousContentLength = errors.New("ambiguous Content-Length headers")

	// ErrMultipleContentDisposition .
	ErrMultipleContentDisposition = errors.New("multiple Content-Disposition headers")

	// ErrMultipleLocation .
	ErrMultipleLocation = errors.New("multiple Location headers")
)

var (
	// ErrInvalidStatusLine .
	ErrInvalidStatusLine = errors.New("invalid HTTP status line")

	// ErrInvalidHTTPStatusCode .
	ErrInvalidHTTPStatusCode = errors.New("invalid HTTP status code")

	// ErrInvalidCharInHeader .
	ErrInvalidCharInHeader = errors.New("invalid character in header")

	// ErrInvalidChunkedEncoding .
	ErrInvalidChunkedEncoding = errors.New("invalid chunked encoding")
)

var (
	// ErrInvalidArgument .
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState reports a Stream operation issued in a state that
	// does not allow it, e.g. a second SendRequest before the previous
	// exchange reached Done.
	ErrInvalidState = errors.New("invalid stream state")
)
