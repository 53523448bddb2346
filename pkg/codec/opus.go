package codec

import "fmt"

// maxConcealedPackets bounds how many synthetic frames OpusDecoder will
// insert to paper over a single gap in the sequence.
const maxConcealedPackets = 2

// OpusBackend is the native Opus decode primitive this adapter drives. It is
// kept as an interface, not a concrete cgo binding, so the jitter/PLC logic
// in OpusDecoder can be exercised without an Opus shared library present;
// production wiring supplies a real implementation over libopus.
type OpusBackend interface {
	// Decode decodes payload into pcm (interleaved stereo) and returns the
	// number of frames produced.
	Decode(payload []byte, pcm []int16, maxFrames int) (int, error)

	// Conceal synthesizes up to maxFrames frames of replacement audio from
	// decoder history alone, with no packet to draw on.
	Conceal(pcm []int16, maxFrames int) (int, error)

	// ConcealWithHint synthesizes up to maxFrames frames for the packet
	// immediately before payload, using payload's forward-error-correction
	// side information as a hint rather than decoding it outright.
	ConcealWithHint(payload []byte, pcm []int16, maxFrames int) (int, error)

	// LastPacketDuration returns the frame count of the most recently
	// decoded (real or concealed) packet.
	LastPacketDuration() int
}

// OpusDecoder decodes Opus RTP payloads into 48kHz stereo PCM, using the
// backend's native packet-loss concealment to paper over sequence gaps: for
// a gap of more than one packet it synthesizes concealment frames purely
// from decoder history for all but the last missing slot, then synthesizes
// one more concealment frame using the arriving packet itself as a
// forward-error-correction hint before decoding it normally.
type OpusDecoder struct {
	backend        OpusBackend
	sequenceNumber uint32
	hasDecoded     bool
}

func NewOpusDecoder(backend OpusBackend) *OpusDecoder {
	return &OpusDecoder{backend: backend}
}

func (d *OpusDecoder) expectedSequenceNumber() uint32 {
	return d.sequenceNumber + 1
}

func (d *OpusDecoder) OnUnusedPacketReceived(extendedSequenceNumber uint32) {
	if int32(extendedSequenceNumber-d.sequenceNumber) > 0 {
		d.sequenceNumber = extendedSequenceNumber
	}
}

func (d *OpusDecoder) Conceal(audioData []int16, audioBufferFrames int) (int, error) {
	maxFrames := audioBufferFrames
	if last := d.backend.LastPacketDuration(); last < maxFrames {
		maxFrames = last
	}
	return d.backend.Conceal(audioData, maxFrames)
}

func (d *OpusDecoder) DecodePacket(extendedSequenceNumber uint32, payload []byte, audioData []int16, audioBufferFrames int) (int, error) {
	samplesProduced := 0

	if d.hasDecoded && extendedSequenceNumber != d.expectedSequenceNumber() {
		lossCount := int32(extendedSequenceNumber - d.expectedSequenceNumber())
		if lossCount <= 0 {
			return 0, nil
		}

		lastSampleCount := d.backend.LastPacketDuration()
		if lastSampleCount <= 0 {
			return 0, fmt.Errorf("codec: opus backend reported no last packet duration")
		}

		bufferCapacityInPackets := audioBufferFrames / lastSampleCount
		concealCount := minInt(minInt(maxConcealedPackets, bufferCapacityInPackets), int(lossCount))

		for i := 0; concealCount > 1 && i < concealCount-1; i++ {
			decoded, err := d.Conceal(audioData[samplesProduced*ChannelsPerFrame:], audioBufferFrames-samplesProduced)
			if err == nil && decoded > 0 {
				samplesProduced += decoded
			}
		}

		decoded, err := d.backend.ConcealWithHint(payload, audioData[samplesProduced*ChannelsPerFrame:], audioBufferFrames-samplesProduced)
		if err == nil && decoded > 0 {
			samplesProduced += decoded
		}
	}

	decoded, err := d.backend.Decode(payload, audioData[samplesProduced*ChannelsPerFrame:], audioBufferFrames-samplesProduced)
	if err != nil {
		return samplesProduced, err
	}
	d.sequenceNumber = extendedSequenceNumber
	d.hasDecoded = true
	if decoded > 0 {
		samplesProduced += decoded
	}

	return samplesProduced, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
