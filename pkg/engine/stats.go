package engine

// PacketCounters tallies packets and bytes moved through one direction of
// one media kind. A zero PacketCounters is a valid, empty accumulator.
type PacketCounters struct {
	Packets uint64
	Bytes   uint64
	Lost    uint64
}

// Add folds b's counts into c, matching the teacher's tallying convention of
// accumulating per-tick deltas into a running per-mixer total.
func (c *PacketCounters) Add(b PacketCounters) {
	c.Packets += b.Packets
	c.Bytes += b.Bytes
	c.Lost += b.Lost
}

// TransportStats carries the socket-level counters the UDP endpoint
// maintains for one direction of traffic (see pkg/endpoint). Dropped is
// datagrams the endpoint's receive path discarded (e.g. one that classifies
// as no known protocol); it is distinct from Lost in PacketCounters,
// which tracks RTP sequence-number gaps observed above the transport.
type TransportStats struct {
	Dropped        uint64
	RcvBufferBytes int
}

// Add folds b into t.
func (t *TransportStats) Add(b TransportStats) {
	t.Dropped += b.Dropped
	if b.RcvBufferBytes > t.RcvBufferBytes {
		t.RcvBufferBytes = b.RcvBufferBytes
	}
}

// MediaStats is the inbound or outbound half of one mixer's traffic: per-kind
// packet counters plus the transport-level counters for that direction.
type MediaStats struct {
	Audio     PacketCounters
	Video     PacketCounters
	Transport TransportStats
}

// Total returns the sum of Audio and Video counters.
func (m MediaStats) Total() PacketCounters {
	total := m.Audio
	total.Add(m.Video)
	return total
}

func (m *MediaStats) add(b MediaStats) {
	m.Audio.Add(b.Audio)
	m.Video.Add(b.Video)
	m.Transport.Add(b.Transport)
}

// MixerStats is what one mixer reports through gatherStats each tick it is
// sampled. AvgAudioInQueueSamples divides the running sample sum by the
// queue count sampled, matching the original's getAvgAudioInQueueSamples.
type MixerStats struct {
	AudioInQueueSamples    float64
	MaxAudioInQueueSamples uint32
	AudioInQueues          uint32

	Inbound  MediaStats
	Outbound MediaStats
}

// Add accumulates b into m in place, used when the engine sums every active
// mixer's stats into one EngineStats.ActiveMixers snapshot.
func (m *MixerStats) Add(b MixerStats) {
	m.AudioInQueueSamples += b.AudioInQueueSamples
	m.AudioInQueues += b.AudioInQueues
	if b.MaxAudioInQueueSamples > m.MaxAudioInQueueSamples {
		m.MaxAudioInQueueSamples = b.MaxAudioInQueueSamples
	}
	m.Inbound.add(b.Inbound)
	m.Outbound.add(b.Outbound)
}

// AvgAudioInQueueSamples returns the mean queued-sample depth across every
// audio inbound queue that reported one this tick, or zero if none did.
func (m MixerStats) AvgAudioInQueueSamples() float64 {
	if m.AudioInQueues == 0 {
		return 0
	}
	return m.AudioInQueueSamples / float64(m.AudioInQueues)
}

// EngineStats is the snapshot published through the engine's stats slot once
// every statsUpdateTicks ticks. AvgIdle starts at 100 (fully idle, matching
// the teacher's EngineStats default) so a reader observing the very first
// published value before any real tick has run does not see a spuriously
// loaded engine.
type EngineStats struct {
	AvgIdle       float64
	TimeSlipCount int32
	PollPeriodMs  uint32
	ActiveMixers  MixerStats
}

// defaultEngineStats mirrors the teacher's EngineStats field defaults.
func defaultEngineStats() EngineStats {
	return EngineStats{AvgIdle: 100.0, PollPeriodMs: 1}
}
