// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

const (
	// terminal, entered on fatal errors or Stream.Close.
	stateClosed int8 = iota

	// no exchange started yet.
	stateNone

	// state: sending the request
	stateSendingHeaders
	stateSendingChunkedBody
	stateSendingNonChunkedBody

	// quiescent: request flushed, caller has not asked for headers yet,
	// or a 1xx block was just delivered and another one is expected.
	stateRequestSent

	// state: reading response headers
	stateReadHeaders
	stateReadHeadersComplete

	// quiescent: headers parsed, caller has not asked for body yet.
	stateBodyPending

	// state: reading response body
	stateReadBody
	stateReadBodyComplete

	// terminal for the exchange; the next SendRequest reuses carryover.
	stateDone
)

func stateName(s int8) string {
	switch s {
	case stateClosed:
		return "Closed"
	case stateNone:
		return "None"
	case stateSendingHeaders:
		return "SendingHeaders"
	case stateSendingChunkedBody:
		return "SendingChunkedBody"
	case stateSendingNonChunkedBody:
		return "SendingNonChunkedBody"
	case stateRequestSent:
		return "RequestSent"
	case stateReadHeaders:
		return "ReadHeaders"
	case stateReadHeadersComplete:
		return "ReadHeadersComplete"
	case stateBodyPending:
		return "BodyPending"
	case stateReadBody:
		return "ReadBody"
	case stateReadBodyComplete:
		return "ReadBodyComplete"
	case stateDone:
		return "Done"
	}
	return "Unknown"
}
