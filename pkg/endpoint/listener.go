// Package endpoint implements the UDP receive-path demultiplexer: it owns
// one UDP socket, classifies each inbound datagram (STUN / DTLS / RTCP /
// RTP), and routes it to whichever Listener is registered for that
// datagram's ICE username, source address, or pending STUN transaction.
// Every table mutation runs on the endpoint's own goroutine, most of them
// via a posted job, giving single-writer semantics over tables the receive path itself
// reads without any lock.
package endpoint

import "net/netip"

// Listener is the capability set an Endpoint delivers classified datagrams
// to. No method may block: Endpoint calls every OnX method synchronously
// from its own goroutine, so a slow or blocking listener stalls the entire
// socket's receive path.
type Listener interface {
	// OnRegistered fires the first time this listener is installed under
	// any key (ICE username or source address) on ep.
	OnRegistered(ep *Endpoint)

	// OnUnregistered fires once per logical registration removed: ICE and
	// DTLS registrations each count separately, but a STUN response-pending
	// entry piggybacking on an ICE registration does not fire its own
	// OnUnregistered.
	OnUnregistered(ep *Endpoint)

	// OnIceReceived delivers a STUN datagram matched either by USERNAME
	// (request) or by a pending transaction id (response).
	OnIceReceived(ep *Endpoint, src netip.AddrPort, data []byte)

	// OnDtlsReceived delivers a datagram classified as DTLS.
	OnDtlsReceived(ep *Endpoint, src netip.AddrPort, data []byte)

	// OnRtcpReceived delivers a datagram classified as RTCP.
	OnRtcpReceived(ep *Endpoint, src netip.AddrPort, data []byte)

	// OnRtpReceived delivers a datagram classified as RTP.
	OnRtpReceived(ep *Endpoint, src netip.AddrPort, data []byte)
}
