// Package codec implements the audio codec adapters the mixer layer calls
// to turn wire payloads into 48kHz stereo PCM and back. Every decoder
// exposes the same small contract so a mixer can treat Opus and G.711
// interchangeably: decode a packet, conceal a loss, and learn about packets
// it chose not to decode (so sequence tracking stays correct).
package codec

import "math"

// ChannelsPerFrame is the internal PCM format every decoder produces and
// every encoder consumes: interleaved stereo.
const ChannelsPerFrame = 2

// InternalSampleRate is the engine's internal PCM sample rate in Hz.
const InternalSampleRate = 48000

// AudioDecoder turns RTP payload bytes into 48kHz stereo PCM. Implementations
// are variants behind this contract (Opus, PCMA, PCMU) rather than a type
// hierarchy; a mixer holds one per inbound stream and doesn't care which.
type AudioDecoder interface {
	// DecodePacket decodes payload into audioData, which has room for
	// audioBufferFrames stereo frames, and returns the number of frames
	// actually produced. extendedSequenceNumber lets PLC-capable decoders
	// detect loss and interleave concealment before the real packet.
	DecodePacket(extendedSequenceNumber uint32, payload []byte, audioData []int16, audioBufferFrames int) (int, error)

	// Conceal synthesizes audioBufferFrames of replacement audio for a
	// packet that never arrived, using only the decoder's internal state.
	Conceal(audioData []int16, audioBufferFrames int) (int, error)

	// OnUnusedPacketReceived tells the decoder a packet with this sequence
	// number existed but was not passed to DecodePacket (e.g. it arrived
	// after its slot had already been concealed), so sequence tracking
	// does not mistake the gap for further loss.
	OnUnusedPacketReceived(extendedSequenceNumber uint32)
}

// AudioEncoder turns 48kHz stereo PCM into RTP payload bytes.
type AudioEncoder interface {
	// Encode reads frames stereo frames from pcm16Stereo and writes the
	// encoded payload into payload, returning the number of bytes written.
	Encode(pcm16Stereo []int16, frames int, payload []byte) (int, error)
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
