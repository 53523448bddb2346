package pool

import (
	"sync"
	"testing"
)

func TestPool_SingleThreaded(t *testing.T) {
	p := New("test", 3, 4096)

	b0 := p.Allocate()
	b1 := p.Allocate()
	b2 := p.Allocate()
	if b0 == nil || b1 == nil || b2 == nil {
		t.Fatalf("expected 3 successful allocations, got %v %v %v", b0, b1, b2)
	}

	if b3 := p.Allocate(); b3 != nil {
		t.Fatalf("expected exhaustion, got a block")
	}

	b1.Free()
	b0.Free()
	b2.Free()

	if got := p.Outstanding(); got != 0 {
		t.Fatalf("outstanding = %d, want 0", got)
	}
}

func TestPool_FreedBlockIsReusable(t *testing.T) {
	p := New("test", 1, 16)
	b := p.Allocate()
	b.Data()[0] = 0xAB
	b.Free()

	b2 := p.Allocate()
	if b2 == nil {
		t.Fatal("expected reuse of freed block")
	}
	if b2.Data()[0] != 0 {
		t.Fatalf("expected block to be cleared on reallocation, got %x", b2.Data()[0])
	}
}

func TestPool_OutstandingTracksAllocations(t *testing.T) {
	p := New("test", 4, 16)
	a := p.Allocate()
	_ = p.Allocate()
	if got := p.Outstanding(); got != 2 {
		t.Fatalf("outstanding = %d, want 2", got)
	}
	a.Free()
	if got := p.Outstanding(); got != 1 {
		t.Fatalf("outstanding = %d, want 1", got)
	}
}

func TestPool_MultiThreaded(t *testing.T) {
	const numGoroutines = 32
	const iterations = 2000

	p := New("test", 1024, 4096)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		id := byte(g)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				b := p.Allocate()
				if b == nil {
					continue
				}
				for j := range b.Data() {
					b.Data()[j] = id
				}
				for _, v := range b.Data() {
					if v != id {
						t.Errorf("data corruption: want %d got %d", id, v)
						break
					}
				}
				b.Free()
			}
		}()
	}
	wg.Wait()

	if got := p.Outstanding(); got != 0 {
		t.Fatalf("outstanding after drain = %d, want 0", got)
	}
}

func TestPool_LeakReport(t *testing.T) {
	p := New("test", 16, 64)
	p.Allocate()
	p.Allocate()

	if got := p.Outstanding(); got != 2 {
		t.Fatalf("outstanding = %d, want 2 (simulated leak)", got)
	}
}

func TestRefCountedPacket_FanOut(t *testing.T) {
	p := New("test", 4, 64)
	pk := Acquire(p)
	pk.SetLength(1)

	r := NewRefCounted(pk)
	r.Retain()
	r.Retain()

	r.Release()
	r.Release()
	if got := p.Outstanding(); got != 1 {
		t.Fatalf("outstanding = %d, want 1 before last release", got)
	}

	r.Release()
	if got := p.Outstanding(); got != 0 {
		t.Fatalf("outstanding = %d, want 0 after last release", got)
	}
}
