// Copyright 2021 hxkit. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package taskpool

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/hxkit/h1wire/logging"
)

func call(f func()) {
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			logging.Error("taskpool call failed: %v\n%v\n", err, *(*string)(unsafe.Pointer(&buf)))
		}
	}()
	f()
}

// SerialPool runs tasks one at a time in submission order on a single
// worker goroutine. The framing engine requires its transport completion
// callbacks to be serialized; AsyncConn hands them to a SerialPool.
type SerialPool struct {
	mux     sync.Mutex
	queue   []func()
	running bool
	closed  bool
}

// Go queues f. Tasks queued before f are guaranteed to finish before f
// starts.
func (sp *SerialPool) Go(f func()) {
	if f == nil {
		return
	}
	sp.mux.Lock()
	if sp.closed {
		sp.mux.Unlock()
		return
	}
	sp.queue = append(sp.queue, f)
	if sp.running {
		sp.mux.Unlock()
		return
	}
	sp.running = true
	sp.mux.Unlock()

	go sp.drain()
}

func (sp *SerialPool) drain() {
	for {
		sp.mux.Lock()
		if len(sp.queue) == 0 || sp.closed {
			sp.running = false
			sp.mux.Unlock()
			return
		}
		f := sp.queue[0]
		sp.queue = sp.queue[1:]
		sp.mux.Unlock()

		call(f)
	}
}

// Stop discards queued tasks and rejects new ones.
func (sp *SerialPool) Stop() {
	sp.mux.Lock()
	sp.closed = true
	sp.queue = nil
	sp.mux.Unlock()
}

// NewSerial .
func NewSerial() *SerialPool {
	return &SerialPool{}
}
