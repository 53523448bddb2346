package codec

import "testing"

// fakeOpusBackend is a deterministic stand-in for a real libopus binding: it
// fills every decode/conceal with a distinct marker value and a fixed frame
// duration, so tests can assert how many synthetic frames the adapter
// requested without linking an actual decoder.
type fakeOpusBackend struct {
	frameSize       int
	decodeCalls     int
	concealCalls    int
	concealHintCalls int
	lastMarker      int16
}

func (f *fakeOpusBackend) fill(pcm []int16, maxFrames int, marker int16) int {
	n := f.frameSize
	if n > maxFrames {
		n = maxFrames
	}
	for i := 0; i < n*ChannelsPerFrame && i < len(pcm); i++ {
		pcm[i] = marker
	}
	f.lastMarker = marker
	return n
}

func (f *fakeOpusBackend) Decode(payload []byte, pcm []int16, maxFrames int) (int, error) {
	f.decodeCalls++
	return f.fill(pcm, maxFrames, 100), nil
}

func (f *fakeOpusBackend) Conceal(pcm []int16, maxFrames int) (int, error) {
	f.concealCalls++
	return f.fill(pcm, maxFrames, 50), nil
}

func (f *fakeOpusBackend) ConcealWithHint(payload []byte, pcm []int16, maxFrames int) (int, error) {
	f.concealHintCalls++
	return f.fill(pcm, maxFrames, 75), nil
}

func (f *fakeOpusBackend) LastPacketDuration() int {
	return f.frameSize
}

func TestOpusDecoder_FirstPacketDecodesWithoutConcealment(t *testing.T) {
	backend := &fakeOpusBackend{frameSize: 960}
	dec := NewOpusDecoder(backend)

	audio := make([]int16, 960*ChannelsPerFrame)
	n, err := dec.DecodePacket(1, []byte{1, 2, 3}, audio, 960)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 960 {
		t.Fatalf("produced %d frames, want 960", n)
	}
	if backend.concealCalls != 0 || backend.concealHintCalls != 0 {
		t.Fatal("first packet should not trigger concealment")
	}
}

func TestOpusDecoder_SingleGapUsesHintConcealOnly(t *testing.T) {
	backend := &fakeOpusBackend{frameSize: 960}
	dec := NewOpusDecoder(backend)

	audio := make([]int16, 10*960*ChannelsPerFrame)
	if _, err := dec.DecodePacket(1, []byte{1}, audio, 10*960); err != nil {
		t.Fatalf("decode seq 1: %v", err)
	}

	// seq 2 is missing, seq 3 arrives: gap of exactly one packet.
	n, err := dec.DecodePacket(3, []byte{2}, audio, 10*960)
	if err != nil {
		t.Fatalf("decode seq 3: %v", err)
	}
	if backend.concealCalls != 0 {
		t.Fatalf("pure-history conceal calls = %d, want 0 for a single-packet gap", backend.concealCalls)
	}
	if backend.concealHintCalls != 1 {
		t.Fatalf("hint conceal calls = %d, want 1", backend.concealHintCalls)
	}
	if n != 960*2 {
		t.Fatalf("produced %d frames, want %d (1 concealed + 1 real)", n, 960*2)
	}
}

func TestOpusDecoder_MultiPacketGapUsesHistoryThenHint(t *testing.T) {
	backend := &fakeOpusBackend{frameSize: 960}
	dec := NewOpusDecoder(backend)

	audio := make([]int16, 10*960*ChannelsPerFrame)
	if _, err := dec.DecodePacket(1, []byte{1}, audio, 10*960); err != nil {
		t.Fatalf("decode seq 1: %v", err)
	}

	// seq 2, 3 and 4 missing, seq 5 arrives: gap of three packets, capped at
	// maxConcealedPackets (2) synthetic frames total.
	n, err := dec.DecodePacket(5, []byte{2}, audio, 10*960)
	if err != nil {
		t.Fatalf("decode seq 5: %v", err)
	}
	if backend.concealCalls != 1 {
		t.Fatalf("pure-history conceal calls = %d, want 1", backend.concealCalls)
	}
	if backend.concealHintCalls != 1 {
		t.Fatalf("hint conceal calls = %d, want 1", backend.concealHintCalls)
	}
	if n != 960*3 {
		t.Fatalf("produced %d frames, want %d (2 concealed + 1 real)", n, 960*3)
	}
}

func TestOpusDecoder_OnUnusedPacketReceivedOnlyAdvances(t *testing.T) {
	backend := &fakeOpusBackend{frameSize: 960}
	dec := NewOpusDecoder(backend)
	dec.sequenceNumber = 10

	dec.OnUnusedPacketReceived(5)
	if dec.sequenceNumber != 10 {
		t.Fatalf("sequence regressed to %d, want unchanged 10", dec.sequenceNumber)
	}

	dec.OnUnusedPacketReceived(20)
	if dec.sequenceNumber != 20 {
		t.Fatalf("sequence = %d, want 20", dec.sequenceNumber)
	}
}
