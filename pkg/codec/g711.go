package codec

import "fmt"

// defaultSamplesPerPacket is the concealment duration used before the first
// real packet has ever been decoded (20ms at 8kHz).
const defaultSamplesPerPacket = 160

var pcmaDecodeTable [256]int16
var pcmaEncodeTable [2048]int8
var pcmuDecodeTable [256]int16
var pcmuEncodeTable [128]uint8

func init() {
	initPcmaTables()
	initPcmuTables()
}

func initPcmaTables() {
	for d := 0; d < 256; d++ {
		ix := int16(d^0x0055) & 0x007F
		exponent := ix >> 4
		mant := ix & 0x000F
		if exponent > 0 {
			mant += 16
		}
		mant = (mant << 4) + 8
		if exponent > 1 {
			mant <<= uint(exponent - 1)
		}
		if d > 127 {
			pcmaDecodeTable[d] = mant
		} else {
			pcmaDecodeTable[d] = -mant
		}
	}

	for d := 0; d < 2048; d++ {
		x := int16(d)
		if x > 32 {
			exponent := int16(1)
			for x > 16+15 {
				x >>= 1
				exponent++
			}
			x -= 16
			x += exponent << 4
		}
		pcmaEncodeTable[d] = int8(x)
	}
}

func initPcmuTables() {
	for d := 0; d < 256; d++ {
		sign := int16(1)
		if d < 0x0080 {
			sign = -1
		}
		mantissa := ^int16(d)
		exponent := (mantissa >> 4) & 0x0007
		segment := exponent + 1
		mantissa &= 0x000F
		step := int16(4) << uint(segment)
		pcmuDecodeTable[d] = sign * ((int16(0x0080) << uint(exponent)) + step*mantissa + step/2 - 4*33)
	}

	for d := 0; d < 128; d++ {
		i := d
		segno := 1
		for i != 0 {
			segno++
			i >>= 1
		}
		pcmuEncodeTable[d] = uint8(segno)
	}
}

// PcmaDecoder decodes A-law G.711 (PCMA) payload into 48kHz stereo PCM,
// upsampling 8kHz mono by resampleFactor and duplicating to stereo.
type PcmaDecoder struct {
	upSampler        *Upsampler
	samplesPerPacket int
}

func NewPcmaDecoder() *PcmaDecoder {
	return &PcmaDecoder{upSampler: NewUpsampler(), samplesPerPacket: defaultSamplesPerPacket}
}

func (d *PcmaDecoder) DecodePacket(extendedSequenceNumber uint32, payload []byte, audioData []int16, audioBufferFrames int) (int, error) {
	samples := len(payload)
	if samples*resampleFactor > audioBufferFrames {
		return 0, fmt.Errorf("codec: pcma payload of %d samples needs %d frames, buffer has %d", samples, samples*resampleFactor, audioBufferFrames)
	}

	mono8k := make([]int16, samples)
	for i, b := range payload {
		mono8k[i] = pcmaDecodeTable[b]
	}

	d.upSampler.Upsample(mono8k, audioData)
	makeStereo(audioData, samples*resampleFactor)

	d.samplesPerPacket = samples
	return samples * resampleFactor, nil
}

func (d *PcmaDecoder) Conceal(audioData []int16, audioBufferFrames int) (int, error) {
	n := d.samplesPerPacket * resampleFactor
	if n > audioBufferFrames {
		n = audioBufferFrames
	}
	for i := 0; i < n*ChannelsPerFrame; i++ {
		audioData[i] = 0
	}
	return n, nil
}

func (d *PcmaDecoder) OnUnusedPacketReceived(extendedSequenceNumber uint32) {}

// PcmaEncoder encodes 48kHz stereo PCM into A-law G.711 (PCMA) payload,
// downmixing to mono and downsampling to 8kHz.
type PcmaEncoder struct {
	downSampler *Downsampler
}

func NewPcmaEncoder() *PcmaEncoder {
	return &PcmaEncoder{downSampler: NewDownsampler()}
}

func (e *PcmaEncoder) Encode(pcm16Stereo []int16, frames int, payload []byte) (int, error) {
	if frames%resampleFactor != 0 {
		return 0, fmt.Errorf("codec: pcma encode frame count %d not a multiple of %d", frames, resampleFactor)
	}

	mono := make([]int16, frames)
	makeMono(pcm16Stereo, mono, frames, 0.5)

	g711Frames := frames / resampleFactor
	mono8k := make([]int16, g711Frames)
	e.downSampler.Downsample(mono, mono8k)

	for n := 0; n < g711Frames; n++ {
		if mono8k[n] < 0 {
			payload[n] = byte(pcmaEncodeTable[(^mono8k[n])>>4]) ^ 0x0055
		} else {
			payload[n] = (byte(pcmaEncodeTable[mono8k[n]>>4]) | 0x80) ^ 0x0055
		}
	}

	return g711Frames, nil
}

// PcmuDecoder decodes mu-law G.711 (PCMU) payload into 48kHz stereo PCM.
type PcmuDecoder struct {
	upSampler        *Upsampler
	samplesPerPacket int
}

func NewPcmuDecoder() *PcmuDecoder {
	return &PcmuDecoder{upSampler: NewUpsampler(), samplesPerPacket: defaultSamplesPerPacket}
}

func (d *PcmuDecoder) DecodePacket(extendedSequenceNumber uint32, payload []byte, audioData []int16, audioBufferFrames int) (int, error) {
	samples := len(payload)
	if samples*resampleFactor > audioBufferFrames {
		return 0, fmt.Errorf("codec: pcmu payload of %d samples needs %d frames, buffer has %d", samples, samples*resampleFactor, audioBufferFrames)
	}

	mono8k := make([]int16, samples)
	for i, b := range payload {
		mono8k[i] = pcmuDecodeTable[b]
	}

	d.upSampler.Upsample(mono8k, audioData)
	makeStereo(audioData, samples*resampleFactor)

	d.samplesPerPacket = samples
	return samples * resampleFactor, nil
}

func (d *PcmuDecoder) Conceal(audioData []int16, audioBufferFrames int) (int, error) {
	n := d.samplesPerPacket * resampleFactor
	if n > audioBufferFrames {
		n = audioBufferFrames
	}
	for i := 0; i < n*ChannelsPerFrame; i++ {
		audioData[i] = 0
	}
	return n, nil
}

func (d *PcmuDecoder) OnUnusedPacketReceived(extendedSequenceNumber uint32) {}

// PcmuEncoder encodes 48kHz stereo PCM into mu-law G.711 (PCMU) payload.
type PcmuEncoder struct {
	downSampler *Downsampler
}

func NewPcmuEncoder() *PcmuEncoder {
	return &PcmuEncoder{downSampler: NewDownsampler()}
}

func (e *PcmuEncoder) Encode(pcm16Stereo []int16, frames int, payload []byte) (int, error) {
	if frames%resampleFactor != 0 {
		return 0, fmt.Errorf("codec: pcmu encode frame count %d not a multiple of %d", frames, resampleFactor)
	}

	mono := make([]int16, frames)
	makeMono(pcm16Stereo, mono, frames, 0.5)

	g711Frames := frames / resampleFactor
	pcm := make([]int16, g711Frames)
	e.downSampler.Downsample(mono, pcm)

	for n := 0; n < g711Frames; n++ {
		var absno int16
		if pcm[n] < 0 {
			absno = (^pcm[n])>>2 + 33
		} else {
			absno = pcm[n]>>2 + 33
		}
		if absno > 0x1FFF {
			absno = 0x1FFF
		}

		segno := int16(pcmuEncodeTable[absno>>6])
		highNibble := int16(0x0008) - segno
		lowNibble := (absno >> uint(segno)) & 0x000F
		lowNibble = 0x000F - lowNibble

		v := byte((highNibble << 4) | lowNibble)
		if pcm[n] >= 0 {
			v |= 0x0080
		}
		payload[n] = v
	}

	return g711Frames, nil
}
