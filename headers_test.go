// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"errors"
	"testing"
)

func TestLocateStartOfStatusLine(t *testing.T) {
	for _, v := range []struct {
		in   string
		want int
	}{
		{"HTTP/1.1 200 OK", 0},
		{"http/1.1 200 ok", 0},
		{"\r\nHTTP/1.1 200 OK", 2},
		{"\r\n\r\nHTTP/1.1 200 OK", 4},
		{"xxxxxHTTP/1.1 200 OK", -1}, // five junk bytes is one too many
		{"<html>body", -1},
		{"HT", -1},
	} {
		if got := locateStartOfStatusLine([]byte(v.in)); got != v.want {
			t.Fatalf("locateStartOfStatusLine(%q) = %d, want %d", v.in, got, v.want)
		}
	}
}

func TestLocateEndOfHeaders(t *testing.T) {
	for _, v := range []struct {
		in   string
		want int
	}{
		{"HTTP/1.1 200 OK\r\n\r\n", 19},
		{"HTTP/1.1 200 OK\n\n", 17},
		{"HTTP/1.1 200 OK\r\nA: 1\r\n", -1},
		{"HTTP/1.1 200 OK\r\nA: 1\r\n\r\nbody", 25},
	} {
		if got := locateEndOfHeaders([]byte(v.in), 0); got != v.want {
			t.Fatalf("locateEndOfHeaders(%q) = %d, want %d", v.in, got, v.want)
		}
	}
}

func TestParseResponseHeaders(t *testing.T) {
	raw := "HTTP/1.1 301 Moved Permanently\r\n" +
		"Location: https://example.com/\r\n" +
		"content-type: text/html\r\n" +
		"Set-Cookie: a=1\r\n" +
		"Set-Cookie: b=2\r\n" +
		"\r\n"
	h, err := parseResponseHeaders([]byte(raw), false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.Proto != "HTTP/1.1" || h.StatusCode != 301 || h.Reason != "Moved Permanently" {
		t.Fatalf("status line = %q %d %q", h.Proto, h.StatusCode, h.Reason)
	}
	if h.Get("Content-Type") != "text/html" {
		t.Fatalf("case-insensitive Get failed: %q", h.Get("Content-Type"))
	}
	if vv := h.Values("Set-Cookie"); len(vv) != 2 || vv[0] != "a=1" || vv[1] != "b=2" {
		t.Fatalf("Values(Set-Cookie) = %v", vv)
	}
	if h.Len() != 4 {
		t.Fatalf("Len = %d", h.Len())
	}
}

func TestParseResponseHeadersObsFold(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"X-Long: first\r\n" +
		"  second\r\n" +
		"\r\n"
	h, err := parseResponseHeaders([]byte(raw), false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := h.Get("X-Long"); got != "first second" {
		t.Fatalf("folded value = %q", got)
	}
}

func TestParseResponseHeadersStrictVsLenient(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Good: yes\r\n" +
		"no-colon-line\r\n" +
		"\r\n"
	if _, err := parseResponseHeaders([]byte(raw), false); !errors.Is(err, ErrInvalidCharInHeader) {
		t.Fatalf("strict: err = %v, want ErrInvalidCharInHeader", err)
	}
	h, err := parseResponseHeaders([]byte(raw), true)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if h.Get("Good") != "yes" || h.Len() != 1 {
		t.Fatalf("lenient kept %d fields, Good=%q", h.Len(), h.Get("Good"))
	}
}

func TestParseStatusLineErrors(t *testing.T) {
	for _, line := range []string{
		"NOTHTTP/1.1 200 OK",
		"HTTP/1.1 20 OK",
		"HTTP/1.1 20x OK",
		"HTTP/1.1 2000 OK",
	} {
		h := &ResponseHeaders{}
		if err := parseStatusLine(h, line); err == nil {
			t.Fatalf("parseStatusLine(%q) accepted", line)
		}
	}

	h := &ResponseHeaders{}
	if err := parseStatusLine(h, "HTTP/1.0 204 "); err != nil {
		t.Fatalf("empty reason rejected: %v", err)
	}
	if h.StatusCode != 204 || h.Reason != "" {
		t.Fatalf("status = %d reason = %q", h.StatusCode, h.Reason)
	}
}

func TestCheckHeaderSmuggling(t *testing.T) {
	mk := func(fields ...[2]string) *ResponseHeaders {
		h := &ResponseHeaders{StatusCode: 200}
		for _, f := range fields {
			h.Add(f[0], f[1])
		}
		return h
	}

	if err := checkHeaderSmuggling(mk([2]string{"Content-Length", "5"})); err != nil {
		t.Fatalf("single CL rejected: %v", err)
	}
	if err := checkHeaderSmuggling(mk(
		[2]string{"Content-Length", "5"},
		[2]string{"Content-Length", " 5 "},
	)); err != nil {
		t.Fatalf("equal CL values rejected: %v", err)
	}
	if err := checkHeaderSmuggling(mk(
		[2]string{"Content-Length", "5"},
		[2]string{"Content-Length", "6"},
	)); !errors.Is(err, ErrAmbiguousContentLength) {
		t.Fatalf("differing CL: err = %v", err)
	}
	// Transfer-Encoding wins the framing decision, so differing CLs
	// are no longer ambiguous.
	if err := checkHeaderSmuggling(mk(
		[2]string{"Transfer-Encoding", "chunked"},
		[2]string{"Content-Length", "5"},
		[2]string{"Content-Length", "6"},
	)); err != nil {
		t.Fatalf("CL conflict with TE present rejected: %v", err)
	}
	if err := checkHeaderSmuggling(mk(
		[2]string{"Content-Disposition", "attachment"},
		[2]string{"Content-Disposition", "attachment"},
	)); !errors.Is(err, ErrMultipleContentDisposition) {
		t.Fatalf("duplicate Content-Disposition: err = %v", err)
	}
	if err := checkHeaderSmuggling(mk(
		[2]string{"Location", "/a"},
		[2]string{"Location", "/a"},
	)); !errors.Is(err, ErrMultipleLocation) {
		t.Fatalf("duplicate Location: err = %v", err)
	}
}
