// Package classify holds pure, allocation-free functions that identify the
// protocol of an inbound UDP datagram by inspecting its leading bytes. None
// of these functions parse or retain the buffer; they only answer "what is
// this", so the endpoint's receive path can route without touching protocol
// internals it treats as opaque.
package classify

import "encoding/binary"

const stunMagicCookie = 0x2112A442

// rtcpPayloadTypeLow and rtcpPayloadTypeHigh bound the RTCP payload type
// range carved out of the RTP/RTCP shared header space (RFC 5761).
const (
	rtcpPayloadTypeLow  = 200
	rtcpPayloadTypeHigh = 223
)

// IsStun reports whether b looks like a STUN message: the magic cookie is
// present at its fixed offset and the top two bits of the first byte (the
// STUN message-type field) are zero, as required by RFC 5389.
func IsStun(b []byte) bool {
	if len(b) < 8 {
		return false
	}
	if b[0]&0xc0 != 0 {
		return false
	}
	return binary.BigEndian.Uint32(b[4:8]) == stunMagicCookie
}

// IsDtls reports whether b looks like a DTLS record: its content-type byte
// falls in the range RFC 7983 reserves for TLS/DTLS content types.
func IsDtls(b []byte) bool {
	if len(b) < 1 {
		return false
	}
	return b[0] >= 20 && b[0] <= 63
}

// IsRtp reports whether b looks like an RTP packet: RTP version 2 and a
// payload type outside the RTCP range.
func IsRtp(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if b[0]>>6 != 2 {
		return false
	}
	pt := b[1]
	return pt < rtcpPayloadTypeLow || pt > rtcpPayloadTypeHigh
}

// IsRtcp reports whether b looks like an RTCP packet: RTP version 2 and a
// payload type inside the RTCP range.
func IsRtcp(b []byte) bool {
	if len(b) < 2 {
		return false
	}
	if b[0]>>6 != 2 {
		return false
	}
	pt := b[1]
	return pt >= rtcpPayloadTypeLow && pt <= rtcpPayloadTypeHigh
}
