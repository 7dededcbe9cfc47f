// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const (
	transferEncodingHeader   = "Transfer-Encoding"
	contentLengthHeader      = "Content-Length"
	contentDispositionHeader = "Content-Disposition"
	locationHeader           = "Location"
)

// HeaderField is one name/value pair from a response header block.
type HeaderField struct {
	Name  string
	Value string
}

// ResponseHeaders is a parsed response header block: the status line plus
// the header fields in wire order. Duplicate names are preserved so that
// smuggling patterns stay detectable.
type ResponseHeaders struct {
	Proto      string
	StatusCode int
	Reason     string

	fields []HeaderField
}

// Add appends a field, canonicalizing its name.
func (h *ResponseHeaders) Add(name, value string) {
	h.fields = append(h.fields, HeaderField{
		Name:  textproto.CanonicalMIMEHeaderKey(name),
		Value: value,
	})
}

// Len returns the number of fields.
func (h *ResponseHeaders) Len() int {
	return len(h.fields)
}

// Field returns the i-th field in wire order.
func (h *ResponseHeaders) Field(i int) HeaderField {
	return h.fields[i]
}

// Get returns the first value of the named header, or "".
func (h *ResponseHeaders) Get(name string) string {
	name = textproto.CanonicalMIMEHeaderKey(name)
	for _, f := range h.fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Values returns all values of the named header in wire order.
func (h *ResponseHeaders) Values(name string) []string {
	name = textproto.CanonicalMIMEHeaderKey(name)
	var vv []string
	for _, f := range h.fields {
		if f.Name == name {
			vv = append(vv, f.Value)
		}
	}
	return vv
}

// statusLineSlop is how many garbage bytes may precede the "HTTP" token.
const statusLineSlop = 4

// minBytesForStatusLine is how many bytes must have arrived before the
// absence of a status-line token means HTTP/0.9.
const minBytesForStatusLine = len("HTTP") + statusLineSlop

// locateStartOfStatusLine returns the offset of the "HTTP" token within
// the first statusLineSlop+4 bytes of b, or -1.
func locateStartOfStatusLine(b []byte) int {
	const tokenLen = len("HTTP")
	if len(b) < tokenLen {
		return -1
	}
	iMax := len(b) - tokenLen
	if iMax > statusLineSlop {
		iMax = statusLineSlop
	}
	for i := 0; i <= iMax; i++ {
		if equalFoldHTTP(b[i : i+tokenLen]) {
			return i
		}
	}
	return -1
}

func equalFoldHTTP(b []byte) bool {
	return (b[0] == 'H' || b[0] == 'h') &&
		(b[1] == 'T' || b[1] == 't') &&
		(b[2] == 'T' || b[2] == 't') &&
		(b[3] == 'P' || b[3] == 'p')
}

// locateEndOfHeaders returns the offset just past the blank line ending
// the header block that starts at b[start], or -1 if the block is not
// complete yet. Both CRLF CRLF and bare LF LF terminate.
func locateEndOfHeaders(b []byte, start int) int {
	wasLF := false
	for i := start; i < len(b); i++ {
		switch b[i] {
		case '\n':
			if wasLF {
				return i + 1
			}
			wasLF = true
		case '\r':
			// ignored: CR never resets the blank-line scan
		default:
			wasLF = false
		}
	}
	return -1
}

// parseResponseHeaders parses a raw header block (status line through the
// terminating blank line, which may be absent when the peer closed
// early). In lenient mode malformed lines are skipped instead of
// failing; that mode backs the best-effort parse of a partial block.
func parseResponseHeaders(raw []byte, lenient bool) (*ResponseHeaders, error) {
	h := &ResponseHeaders{}

	rest := string(raw)
	line, rest := nextLine(rest)
	if err := parseStatusLine(h, line); err != nil {
		return nil, err
	}

	var lastName string
	for len(rest) > 0 {
		line, rest = nextLine(rest)
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			// obs-fold: continuation of the previous field's value.
			if lastName == "" {
				if lenient {
					continue
				}
				return nil, ErrInvalidCharInHeader
			}
			f := &h.fields[len(h.fields)-1]
			f.Value = strings.TrimRight(f.Value+" "+strings.Trim(line, " \t"), " \t")
			continue
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			if lenient {
				continue
			}
			return nil, ErrInvalidCharInHeader
		}
		name := strings.TrimRight(line[:i], " \t")
		value := strings.Trim(line[i+1:], " \t")
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			if lenient {
				continue
			}
			return nil, ErrInvalidCharInHeader
		}
		h.Add(name, value)
		lastName = name
	}
	return h, nil
}

func nextLine(s string) (line, rest string) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return strings.TrimRight(s, "\r"), ""
	}
	line = s[:i]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, s[i+1:]
}

// parseStatusLine fills Proto, StatusCode and Reason from a line like
// "HTTP/1.1 200 OK".
func parseStatusLine(h *ResponseHeaders, line string) error {
	proto, rest, ok := cutByte(line, ' ')
	if !ok {
		// no status code at all; keep the proto for best-effort callers.
		if !strings.HasPrefix(strings.ToUpper(line), "HTTP") {
			return ErrInvalidStatusLine
		}
		h.Proto = line
		return nil
	}
	if !strings.HasPrefix(strings.ToUpper(proto), "HTTP") {
		return ErrInvalidStatusLine
	}
	h.Proto = proto

	rest = strings.TrimLeft(rest, " ")
	codeStr, reason, _ := cutByte(rest, ' ')
	if len(codeStr) != 3 {
		return ErrInvalidHTTPStatusCode
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 0 {
		return ErrInvalidHTTPStatusCode
	}
	h.StatusCode = code
	h.Reason = strings.TrimLeft(reason, " ")
	return nil
}

func cutByte(s string, sep byte) (before, after string, found bool) {
	if i := strings.IndexByte(s, sep); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// checkHeaderSmuggling applies the duplicate-header defenses from
// RFC 7230 style response-splitting hardening:
//
//   - multiple differing Content-Length values with no Transfer-Encoding
//     make the body framing ambiguous;
//   - Content-Disposition and Location must not repeat at all, even with
//     identical values.
func checkHeaderSmuggling(h *ResponseHeaders) error {
	if vv := h.Values(contentDispositionHeader); len(vv) > 1 {
		return ErrMultipleContentDisposition
	}
	if vv := h.Values(locationHeader); len(vv) > 1 {
		return ErrMultipleLocation
	}
	if h.Get(transferEncodingHeader) != "" {
		return nil
	}
	cls := h.Values(contentLengthHeader)
	if len(cls) <= 1 {
		return nil
	}
	first := textproto.TrimString(cls[0])
	for _, cl := range cls[1:] {
		if textproto.TrimString(cl) != first {
			return ErrAmbiguousContentLength
		}
	}
	return nil
}
