package endpoint

import (
	"net"
	"syscall"

	"github.com/higebu/netfd"
)

// TransportStats carries the socket-level counters this endpoint exposes
// for its owning mixer's EngineStats.TransportStats leaf.
type TransportStats struct {
	// Dropped counts receive-path discards: a read skipped because the
	// receive pool was exhausted, a datagram that classifies as none of
	// STUN/DTLS/RTCP/RTP, or a STUN datagram that fails to decode. Read
	// errors and a full receive-job queue are not counted. Distinct from an
	// RTP sequence-number gap, which
	// is tracked above this package, inside the mixer.
	Dropped uint64

	// RcvBufferBytes is the kernel-configured SO_RCVBUF size for the
	// endpoint's socket, read once at construction.
	RcvBufferBytes int
}

// socketRcvBufBytes extracts conn's raw file descriptor and reads its
// kernel-configured receive buffer size. Returns 0 if either step fails,
// which callers treat as "unknown" rather than an error — this is
// diagnostic information, not something the receive path depends on.
//
// The extract-fd-then-query-kernel-state shape mirrors
// runZeroInc-sockstats's TCPInfoCollector, which uses netfd.GetFdFromConn
// the same way to reach per-connection kernel state a plain net.Conn
// doesn't expose.
func socketRcvBufBytes(conn *net.UDPConn) int {
	if conn == nil {
		return 0
	}
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return 0
	}
	n, err := syscall.GetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF)
	if err != nil {
		return 0
	}
	return n
}
