package taskpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSerialPoolOrder(t *testing.T) {
	pool := NewSerial()
	defer pool.Stop()

	var mux sync.Mutex
	var got []int
	var wg sync.WaitGroup
	loop := 1000
	wg.Add(loop)
	for i := 0; i < loop; i++ {
		i := i
		pool.Go(func() {
			mux.Lock()
			got = append(got, i)
			mux.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i := 0; i < loop; i++ {
		if got[i] != i {
			t.Fatalf("task %v ran out of order: %v", i, got[i])
		}
	}
}

func TestSerialPoolPanic(t *testing.T) {
	pool := NewSerial()
	defer pool.Stop()

	var done int32
	var wg sync.WaitGroup
	wg.Add(1)
	pool.Go(func() {
		panic("boom")
	})
	pool.Go(func() {
		atomic.StoreInt32(&done, 1)
		wg.Done()
	})
	wg.Wait()
	if atomic.LoadInt32(&done) != 1 {
		t.Fatal("task after panic did not run")
	}
}

func TestSerialPoolStop(t *testing.T) {
	pool := NewSerial()
	pool.Stop()
	pool.Go(func() {
		t.Fatal("task ran after Stop")
	})
	time.Sleep(50 * time.Millisecond)
}
