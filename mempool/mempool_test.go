package mempool

import (
	"testing"
)

func TestMallocFree(t *testing.T) {
	pool := New(64, 64*1024)
	for _, size := range []int{1, 64, 100, 1024, 64*1024 + 1} {
		buf := pool.Malloc(size)
		if len(buf) != size {
			t.Fatalf("Malloc(%v) returned len %v", size, len(buf))
		}
		pool.Free(buf)
	}
}

func TestRealloc(t *testing.T) {
	pool := New(64, 64*1024)
	buf := pool.Malloc(10)
	for i := range buf {
		buf[i] = byte(i)
	}
	buf = pool.Realloc(buf, 1000)
	if len(buf) != 1000 {
		t.Fatalf("Realloc returned len %v", len(buf))
	}
	for i := 0; i < 10; i++ {
		if buf[i] != byte(i) {
			t.Fatalf("Realloc lost contents at %v: %v", i, buf[i])
		}
	}
	pool.Free(buf)
}

func TestSTDAllocator(t *testing.T) {
	pool := NewSTD()
	buf := pool.Malloc(8)
	buf = pool.Append(buf, 1, 2, 3)
	buf = pool.AppendString(buf, "abc")
	if len(buf) != 14 {
		t.Fatalf("Append/AppendString returned len %v", len(buf))
	}
	pool.Free(buf)
}
