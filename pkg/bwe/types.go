package bwe

import "time"

// PacketInfo contains information about a received RTP packet used for
// bandwidth estimation. This is the primary input to the estimator.
type PacketInfo struct {
	// ArrivalTime is the monotonic time when the packet was received.
	// Must be obtained from a monotonic clock source (time.Now() in Go).
	ArrivalTime time.Time

	// SendTime is the 24-bit abs-send-time value from the RTP header extension.
	// This is a 6.18 fixed-point representation of NTP time modulo 64 seconds.
	SendTime uint32

	// Size is the size of the whole RTP packet in bytes, header included.
	Size int

	// SSRC is the synchronization source identifier for the media stream.
	SSRC uint32
}

// Constants for abs-send-time (AST) header extension parsing.
// The abs-send-time extension uses a 24-bit 6.18 fixed-point format
// representing NTP time in seconds modulo 64 seconds.
const (
	// AbsSendTimeMax is the maximum value of the 24-bit abs-send-time field.
	// Values wrap around at this point (every 64 seconds).
	AbsSendTimeMax = 1 << 24 // 16777216

	// AbsSendTimeResolution is the time resolution of one abs-send-time unit.
	// With 18 bits for the fractional part: 1/2^18 = ~3.8 microseconds.
	AbsSendTimeResolution = 1.0 / (1 << 18) // ~3.8147e-6 seconds per unit
)
