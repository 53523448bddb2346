package engine

// CommandKind tags which mutation a Command carries. The engine switches on
// this field rather than using a Go interface per variant, matching the
// teacher's closed tagged-union style for cross-thread command passing —
// a fixed enum is trivial to copy through the MPMC queue by value, where an
// interface would box and potentially allocate per push.
type CommandKind int

const (
	AddMixer CommandKind = iota
	RemoveMixer
	AddAudioStream
	RemoveAudioStream
	AddVideoStream
	RemoveVideoStream
	AddDataStream
	RemoveDataStream
	AddRecordingStream
	RemoveRecordingStream
	StartRecording
	StopRecording
	StartTransport
	ReconfigureAudioStream
	ReconfigureVideoStream
	PinEndpoint
	SendEndpointMessage
	SctpControl
	AddPacketCache
)

// MixerHandle is a stable index into the engine's mixer table. The table
// entry it names may be nil (destroyed, or never populated); handles are
// reused after RemoveMixer, so callers must not retain a handle across a
// RemoveMixer/AddMixer pair and expect it to still name the same mixer.
type MixerHandle int

// Command is a tagged variant describing one mutation to apply on the
// engine thread. Every variant carries Mixer plus whichever payload field
// its Kind uses; fields irrelevant to a given Kind are left zero. Commands
// targeting a destroyed mixer are dropped silently by the engine, per the
// "stale handle" invariant in the mixer table.
type Command struct {
	Kind  CommandKind
	Mixer MixerHandle

	// StreamID names the audio/video/data/recording stream a stream or
	// cache command applies to. Unused by mixer-level commands.
	StreamID uint32

	// EndpointID names the target of PinEndpoint/SendEndpointMessage.
	EndpointID uint32

	// Payload carries variant-specific data (stream config, SCTP bytes, a
	// packet cache handle, an endpoint message body, …). The mixer that
	// receives it through its mutator method is responsible for asserting
	// its concrete shape; the engine itself never inspects it.
	Payload any

	// NewMixer constructs the Mixer for an AddMixer command. Left nil for
	// every other Kind.
	NewMixer func() Mixer
}
