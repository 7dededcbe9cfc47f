// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package h1wire

import (
	"net"
	"testing"
	"time"
)

func TestNetConnSynchronous(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		buf := make([]byte, 16)
		n, _ := b.Read(buf)
		b.Write(buf[:n])
	}()

	c := NetConn(a)
	if n, err := c.Write([]byte("ping"), nil); n != 4 || err != nil {
		t.Fatalf("Write = %d/%v", n, err)
	}
	p := make([]byte, 16)
	n, err := c.Read(p, nil)
	if err != nil || string(p[:n]) != "ping" {
		t.Fatalf("Read = %d/%v %q", n, err, p[:n])
	}
}

func TestAsyncConnPending(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		buf := make([]byte, 16)
		n, _ := b.Read(buf)
		b.Write(buf[:n])
	}()

	c := AsyncConn(a, nil)
	wrote := make(chan int, 1)
	if n, err := c.Write([]byte("ping"), func(n int, err error) {
		if err != nil {
			t.Errorf("write completion: %v", err)
		}
		wrote <- n
	}); n != 0 || err != ErrPending {
		t.Fatalf("Write = %d/%v, want 0/ErrPending", n, err)
	}
	select {
	case n := <-wrote:
		if n != 4 {
			t.Fatalf("wrote %d bytes", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("write completion never fired")
	}

	p := make([]byte, 16)
	got := make(chan string, 1)
	if _, err := c.Read(p, func(n int, err error) {
		if err != nil {
			t.Errorf("read completion: %v", err)
		}
		got <- string(p[:n])
	}); err != ErrPending {
		t.Fatalf("Read = %v, want ErrPending", err)
	}
	select {
	case s := <-got:
		if s != "ping" {
			t.Fatalf("read %q", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("read completion never fired")
	}
}
