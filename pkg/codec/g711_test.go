package codec

import (
	"math"
	"testing"
)

// sineFrames and sineAmplitude match the 400 Hz reference tone the original
// codec test suite computes its audio level against: 960 stereo frames at
// 48 kHz (eight full cycles) keeps the RMS estimate exact regardless of
// phase alignment.
const (
	sineFrames    = 960
	sineFreqHz    = 400
	sineAmplitude = 2000
	wantLevelDb   = 27
)

func sineWave(frames int, freqHz, sampleRate float64) []int16 {
	pcm := make([]int16, frames*ChannelsPerFrame)
	for i := 0; i < frames; i++ {
		v := int16(sineAmplitude * math.Sin(2*math.Pi*freqHz*float64(i)/sampleRate))
		pcm[i*2] = v
		pcm[i*2+1] = v
	}
	return pcm
}

func rmsLevel(pcm []int16) float64 {
	var sumSquares float64
	n := len(pcm)
	for _, s := range pcm {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(n))
}

// audioLevelDb mirrors computeAudioLevel: 0 dB is full scale (int16 max),
// and level rises as the signal gets quieter, matching the RTP audio-level
// extension's silence-at-0-loudest-at-127 convention.
func audioLevelDb(pcm []int16) int {
	return int(math.Round(-20 * math.Log10(rmsLevel(pcm)/32767)))
}

func TestPcmaRoundTripPreservesLevel(t *testing.T) {
	original := sineWave(sineFrames, sineFreqHz, InternalSampleRate)
	if got := audioLevelDb(original); got != wantLevelDb {
		t.Fatalf("input level = %d dB, want %d dB", got, wantLevelDb)
	}

	enc := NewPcmaEncoder()
	payload := make([]byte, sineFrames/resampleFactor)
	n, err := enc.Encode(original, sineFrames, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != sineFrames/resampleFactor {
		t.Fatalf("encoded %d samples, want %d", n, sineFrames/resampleFactor)
	}

	dec := NewPcmaDecoder()
	decoded := make([]int16, sineFrames*ChannelsPerFrame)
	produced, err := dec.DecodePacket(0, payload, decoded, sineFrames)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if produced != sineFrames {
		t.Fatalf("decoded %d frames, want %d", produced, sineFrames)
	}

	if got := audioLevelDb(decoded); got != wantLevelDb {
		t.Fatalf("round-tripped level = %d dB, want %d dB (exact match with input)", got, wantLevelDb)
	}
}

func TestPcmuRoundTripPreservesLevel(t *testing.T) {
	original := sineWave(sineFrames, sineFreqHz, InternalSampleRate)
	if got := audioLevelDb(original); got != wantLevelDb {
		t.Fatalf("input level = %d dB, want %d dB", got, wantLevelDb)
	}

	enc := NewPcmuEncoder()
	payload := make([]byte, sineFrames/resampleFactor)
	if _, err := enc.Encode(original, sineFrames, payload); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewPcmuDecoder()
	decoded := make([]int16, sineFrames*ChannelsPerFrame)
	produced, err := dec.DecodePacket(0, payload, decoded, sineFrames)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if produced != sineFrames {
		t.Fatalf("decoded %d frames, want %d", produced, sineFrames)
	}

	if got := audioLevelDb(decoded); got != wantLevelDb {
		t.Fatalf("round-tripped level = %d dB, want %d dB (exact match with input)", got, wantLevelDb)
	}
}

func TestPcmaDecoderConcealsUsingLastPacketSize(t *testing.T) {
	dec := NewPcmaDecoder()
	payload := make([]byte, 160)
	audio := make([]int16, 160*resampleFactor*ChannelsPerFrame)
	if _, err := dec.DecodePacket(0, payload, audio, 160*resampleFactor); err != nil {
		t.Fatalf("decode: %v", err)
	}

	concealed := make([]int16, 160*resampleFactor*ChannelsPerFrame)
	n, err := dec.Conceal(concealed, 160*resampleFactor)
	if err != nil {
		t.Fatalf("conceal: %v", err)
	}
	if n != 160*resampleFactor {
		t.Fatalf("concealed %d frames, want %d", n, 160*resampleFactor)
	}
	for _, v := range concealed {
		if v != 0 {
			t.Fatal("concealment audio should be silence")
		}
	}
}

func TestPcmaEncodeRejectsMisalignedFrameCount(t *testing.T) {
	enc := NewPcmaEncoder()
	pcm := make([]int16, 5*ChannelsPerFrame)
	payload := make([]byte, 8)
	if _, err := enc.Encode(pcm, 5, payload); err == nil {
		t.Fatal("expected error for frame count not a multiple of resampleFactor")
	}
}
