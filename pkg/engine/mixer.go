package engine

import "time"

// Mixer is the contract the engine requires of one conference's media
// processing unit. The engine treats a Mixer as opaque beyond these
// methods: it never inspects stream state, never locks around a call (every
// method runs on the single engine thread), and never retains a pointer
// into a Mixer's internals.
type Mixer interface {
	// Tick advances the mixer's media processing by one engine period.
	// Called once per engine tick for every live mixer, in table order.
	Tick(now time.Time)

	// IsReady reports whether the mixer has completed whatever
	// transport/DTLS setup it needs before Tick should start doing real
	// work. A mixer that is not ready is still ticked — readiness is the
	// mixer's own concern, not a reason for the engine to skip it.
	IsReady() bool

	// GatherStats adds this tick's contribution into stats. Called only on
	// ticks where tickCounter%statsUpdateTicks==0, so a mixer that tracks
	// a running sum should reset it after GatherStats reads it.
	GatherStats(stats *MixerStats)

	// The stream-lifecycle mutators named in spec.md's Command variants.
	// Each receives the Command that triggered it so it can read Payload
	// without the engine needing to understand its shape.
	AddAudioStream(cmd Command)
	RemoveAudioStream(cmd Command)
	AddVideoStream(cmd Command)
	RemoveVideoStream(cmd Command)
	AddDataStream(cmd Command)
	RemoveDataStream(cmd Command)
	AddRecordingStream(cmd Command)
	RemoveRecordingStream(cmd Command)
	StartRecording(cmd Command)
	StopRecording(cmd Command)
	StartTransport(cmd Command)
	ReconfigureAudioStream(cmd Command)
	ReconfigureVideoStream(cmd Command)
	PinEndpoint(cmd Command)
	SendEndpointMessage(cmd Command)
	SctpControl(cmd Command)
	AddPacketCache(cmd Command)
}
