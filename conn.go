// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"net"
)

// Conn is the transport handed to the engine: an already-connected,
// already-negotiated duplex byte stream. Connection establishment, TLS
// and timeouts are the caller's concern.
//
// Read and Write either complete synchronously, returning the byte count
// or an error with done never called, or return (0, ErrPending) and then
// invoke done exactly once. Completion callbacks must run serialized
// with all other calls into the Stream that owns the Conn; the engine
// itself never locks. A clean close is reported as (0, io.EOF).
type Conn interface {
	Read(p []byte, done func(n int, err error)) (int, error)
	Write(p []byte, done func(n int, err error)) (int, error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

type netConn struct {
	c net.Conn
}

// NetConn wraps a blocking net.Conn as a Conn whose operations always
// complete synchronously. Handy for tests, examples and plain clients
// that dedicate a goroutine per connection.
func NetConn(c net.Conn) Conn {
	return &netConn{c: c}
}

func (nc *netConn) Read(p []byte, done func(int, error)) (int, error) {
	return nc.c.Read(p)
}

func (nc *netConn) Write(p []byte, done func(int, error)) (int, error) {
	return nc.c.Write(p)
}

func (nc *netConn) LocalAddr() net.Addr {
	return nc.c.LocalAddr()
}

func (nc *netConn) RemoteAddr() net.Addr {
	return nc.c.RemoteAddr()
}

type asyncConn struct {
	c    net.Conn
	exec func(f func())
}

// AsyncConn wraps a blocking net.Conn as a Conn whose operations always
// return ErrPending and complete on a goroutine. exec serializes the
// completion callbacks with the rest of the caller's engine activity;
// taskpool.NewSerial().Go is the usual choice.
func AsyncConn(c net.Conn, exec func(f func())) Conn {
	if exec == nil {
		exec = func(f func()) { f() }
	}
	return &asyncConn{c: c, exec: exec}
}

func (ac *asyncConn) Read(p []byte, done func(int, error)) (int, error) {
	go func() {
		n, err := ac.c.Read(p)
		ac.exec(func() { done(n, err) })
	}()
	return 0, ErrPending
}

func (ac *asyncConn) Write(p []byte, done func(int, error)) (int, error) {
	go func() {
		n, err := ac.c.Write(p)
		ac.exec(func() { done(n, err) })
	}()
	return 0, ErrPending
}

func (ac *asyncConn) LocalAddr() net.Addr {
	return ac.c.LocalAddr()
}

func (ac *asyncConn) RemoteAddr() net.Addr {
	return ac.c.RemoteAddr()
}
