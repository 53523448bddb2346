// Package pool implements a fixed-size block allocator used for packets and
// jobs. Allocation and free are wait-free on the uncontended path: the pool
// is a Treiber stack of pre-allocated blocks, free-listed by a tagged atomic
// block index to avoid ABA on concurrent pop.
package pool

import (
	"sync/atomic"
)

// Block is a fixed-capacity byte buffer owned by exactly one holder at a
// time. A Block obtained from Allocate must be returned through Free exactly
// once; it must not be read or written after Free.
type Block struct {
	data []byte
	next taggedIndex
	pool *Pool
	idx  uint32
}

// Data returns the block's underlying storage. Its length is always the
// pool's configured block size; callers that need a shorter logical length
// track that themselves (see e.g. the packet type built on top of Block).
func (b *Block) Data() []byte {
	return b.data
}

// Free returns the block to its owning pool. Safe to call exactly once per
// allocation; calling it twice on the same Block corrupts the free list.
func (b *Block) Free() {
	b.pool.free(b)
}

// taggedIndex packs a free-list index with a generation tag in the high
// bits, so a concurrent pop can detect that the head it read has been popped
// and pushed again (ABA) between the load and the CAS.
type taggedIndex uint64

const nilIndex = taggedIndex(1<<32 - 1) // all-ones low 32 bits: "no next"

func newTaggedIndex(index uint32, tag uint32) taggedIndex {
	return taggedIndex(index) | taggedIndex(tag)<<32
}

func (t taggedIndex) index() uint32 { return uint32(t) }
func (t taggedIndex) tag() uint32   { return uint32(t >> 32) }

// Pool is a named, bounded set of equally sized blocks. Allocate never
// blocks: it either returns a distinct Block or signals exhaustion by
// returning nil. Freed blocks are eventually re-allocatable. Pool is safe
// for concurrent use by multiple goroutines.
type Pool struct {
	name      string
	blockSize int
	storage   []byte
	blocks    []Block
	head      atomic.Uint64 // taggedIndex of the free-list head
	outCount  atomic.Int64  // blocks currently allocated (not in free list)
}

// New creates a Pool of capacity blocks, each blockSize bytes. All blocks
// are free at construction.
func New(name string, capacity, blockSize int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	if blockSize <= 0 {
		blockSize = 1
	}

	p := &Pool{
		name:      name,
		blockSize: blockSize,
		storage:   make([]byte, capacity*blockSize),
		blocks:    make([]Block, capacity),
	}

	for i := range p.blocks {
		p.blocks[i].data = p.storage[i*blockSize : (i+1)*blockSize : (i+1)*blockSize]
		p.blocks[i].pool = p
		p.blocks[i].idx = uint32(i)
		if i+1 < capacity {
			p.blocks[i].next = newTaggedIndex(uint32(i+1), 0)
		} else {
			p.blocks[i].next = nilIndex
		}
	}
	p.head.Store(uint64(newTaggedIndex(0, 0)))
	return p
}

// Name returns the pool's configured name, used in log messages by callers.
func (p *Pool) Name() string { return p.name }

// BlockSize returns the fixed size, in bytes, of every block in the pool.
func (p *Pool) BlockSize() int { return p.blockSize }

// Capacity returns the total number of blocks the pool was created with.
func (p *Pool) Capacity() int { return len(p.blocks) }

// Outstanding returns the number of blocks currently allocated (not freed).
// A healthy teardown observes zero here; a non-zero value indicates a leak.
func (p *Pool) Outstanding() int64 { return p.outCount.Load() }

// Allocate pops a block from the free-list top. Returns nil if the pool is
// exhausted. Never blocks.
func (p *Pool) Allocate() *Block {
	for {
		head := taggedIndex(p.head.Load())
		if head == nilIndex {
			return nil
		}
		next := p.blocks[head.index()].next
		if p.head.CompareAndSwap(uint64(head), uint64(next)) {
			p.outCount.Add(1)
			b := &p.blocks[head.index()]
			clear(b.data)
			return b
		}
	}
}

// free pushes a block back onto the free-list top, bumping its tag so a
// concurrent Allocate that already read the old head detects the change.
func (p *Pool) free(b *Block) {
	for {
		head := taggedIndex(p.head.Load())
		b.next = head
		newHead := newTaggedIndex(b.idx, head.tag()+1)
		if p.head.CompareAndSwap(uint64(head), uint64(newHead)) {
			p.outCount.Add(-1)
			return
		}
	}
}
