package pool

import "sync/atomic"

// Packet is an owned, fixed-capacity byte buffer backed by a pool Block,
// with a current logical length. A Packet is move-only: exactly one holder
// is responsible for calling Release, which returns the underlying Block to
// its pool. The zero value is not usable; construct with Acquire.
type Packet struct {
	block  *Block
	length int
}

// Acquire allocates a Packet from p. Returns nil if the pool is exhausted,
// matching Pool.Allocate's own null-on-exhaustion contract.
func Acquire(p *Pool) *Packet {
	b := p.Allocate()
	if b == nil {
		return nil
	}
	return &Packet{block: b}
}

// Bytes returns the packet's data up to its current length.
func (pk *Packet) Bytes() []byte {
	return pk.block.Data()[:pk.length]
}

// Capacity returns the maximum length this packet can hold, fixed by its
// pool's block size.
func (pk *Packet) Capacity() int {
	return len(pk.block.Data())
}

// SetLength sets the logical length of the packet's content. Panics if n
// exceeds the packet's capacity, since that would alias memory the caller
// does not own.
func (pk *Packet) SetLength(n int) {
	if n < 0 || n > pk.Capacity() {
		panic("pool: packet length exceeds capacity")
	}
	pk.length = n
}

// Length returns the current logical length.
func (pk *Packet) Length() int {
	return pk.length
}

// Release returns the packet's block to its pool. Call exactly once; the
// Packet must not be used afterward.
func (pk *Packet) Release() {
	pk.block.Free()
}

// RefCountedPacket wraps a Packet for fan-out to multiple holders (e.g. one
// inbound datagram delivered to several mixer inbound queues). The last
// holder to call Release returns the underlying block to its pool.
type RefCountedPacket struct {
	packet *Packet
	refs   atomic.Int32
}

// NewRefCounted wraps pk with an initial reference count of 1.
func NewRefCounted(pk *Packet) *RefCountedPacket {
	r := &RefCountedPacket{packet: pk}
	r.refs.Store(1)
	return r
}

// Retain adds one reference. Must be paired with a matching Release.
func (r *RefCountedPacket) Retain() *RefCountedPacket {
	r.refs.Add(1)
	return r
}

// Bytes returns the underlying packet's content.
func (r *RefCountedPacket) Bytes() []byte {
	return r.packet.Bytes()
}

// Release drops one reference. When the last reference is dropped, the
// underlying packet is released to its pool exactly once.
func (r *RefCountedPacket) Release() {
	if r.refs.Add(-1) == 0 {
		r.packet.Release()
	}
}
