// Package engine implements the single-threaded cooperative scheduler that
// owns every active mixer: it drains commands from any number of producer
// threads, ticks each mixer in turn, and publishes aggregated statistics
// without ever taking a lock on the hot path.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightcall/bridgecore/internal/clock"
	"github.com/brightcall/bridgecore/pkg/queue"
)

const (
	// maxMixers bounds the mixer table, matching the teacher's fixed-size
	// memory::List<EngineMixer*, 4096>.
	maxMixers = 4096

	// statsUpdateTicks is how often the engine sums mixer stats and
	// republishes, trading stats freshness for avoiding a full GatherStats
	// sweep every single tick.
	statsUpdateTicks = 200

	// commandQueueCapacity sizes the MPMC command intake queue.
	commandQueueCapacity = 1024

	// statsPublishCells backs the MpmcPublish stats slot.
	statsPublishCells = 4

	// maxCommandsPerTick bounds how many queued commands one tick drains,
	// so a command-submission burst cannot starve mixer ticking.
	maxCommandsPerTick = 256

	// defaultTickPeriod is the engine's target tick period.
	defaultTickPeriod = time.Millisecond
)

// Engine is a single dedicated goroutine that owns all mixer state. Every
// Mixer method call happens on that one goroutine; cross-goroutine
// communication happens only through PushCommand and Stats.
type Engine struct {
	clock      clock.Clock
	tickPeriod time.Duration

	commands *queue.Mpmc[Command]
	stats    *queue.Publish[EngineStats]

	mixers      [maxMixers]Mixer
	tickCounter uint32
	idleTracker idleTracker
	timeSlips   int32

	running atomic.Bool
	stopped chan struct{}
	wg      sync.WaitGroup
}

// idleTracker is an exponentially-weighted average of the fraction of each
// tick period the engine spent idle, matching the teacher's AvgTracker.
type idleTracker struct {
	value float64
	init  bool
}

const idleTrackerAlpha = 0.05

func (t *idleTracker) update(sample float64) {
	if !t.init {
		t.value = sample
		t.init = true
		return
	}
	t.value += idleTrackerAlpha * (sample - t.value)
}

// New creates an Engine using c for timing (pass nil for the real
// monotonic clock; tests pass a *clock.MockClock to drive ticks
// deterministically without sleeping).
func New(c clock.Clock) *Engine {
	if c == nil {
		c = clock.MonotonicClock{}
	}
	e := &Engine{
		clock:      c,
		tickPeriod: defaultTickPeriod,
		commands:   queue.NewMpmc[Command](commandQueueCapacity),
		stats:      queue.NewPublish[EngineStats](statsPublishCells),
		stopped:    make(chan struct{}),
	}
	e.stats.Publish(defaultEngineStats())
	return e
}

// PushCommand enqueues cmd for application on the next tick. Wait-free and
// safe to call from any goroutine. Returns false if the command queue is
// full, in which case the caller observes back-pressure and must decide
// whether to drop the command or retry.
func (e *Engine) PushCommand(cmd Command) bool {
	return e.commands.Push(cmd)
}

// Stats returns the most recently published EngineStats snapshot. Safe for
// concurrent use by any number of callers; never observes a torn write.
func (e *Engine) Stats() EngineStats {
	return e.stats.Load()
}

// Tick runs one full engine period: drain pending commands, tick every live
// mixer, and publish a stats snapshot every statsUpdateTicks'th call. It
// performs no sleeping itself, which makes it the unit Run's pacing loop
// calls and the unit tests call directly to exercise the engine
// deterministically, one period at a time.
func (e *Engine) Tick(now time.Time) {
	e.drainCommands()
	e.tickMixers(now)
	e.tickCounter++
	if e.tickCounter%statsUpdateTicks == 0 {
		e.publishStats(now)
	}
}

// Run drives the tick loop until Stop is called, sleeping between ticks to
// hold tickPeriod. It blocks the calling goroutine; callers that want the
// engine to run in the background should invoke Run in its own goroutine.
func (e *Engine) Run() {
	e.running.Store(true)
	e.wg.Add(1)
	defer e.wg.Done()

	next := e.clock.Now().Add(e.tickPeriod)
	for e.running.Load() {
		t0 := e.clock.Now()
		e.Tick(t0)

		work := e.clock.Now().Sub(t0)
		idleFraction := 1 - float64(work)/float64(e.tickPeriod)
		e.idleTracker.update(idleFraction)

		sleepFor := time.Until(next)
		if sleepFor <= 0 {
			e.timeSlips++
			next = e.clock.Now().Add(e.tickPeriod)
			continue
		}
		select {
		case <-e.stopped:
			return
		case <-time.After(sleepFor):
		}
		next = next.Add(e.tickPeriod)
	}
}

// Stop requests the run loop exit after completing its current tick. Safe
// to call from any goroutine; idempotent.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		close(e.stopped)
	}
	e.wg.Wait()
}

// drainCommands applies up to maxCommandsPerTick pending commands, dropping
// any whose Mixer handle no longer names a live mixer.
func (e *Engine) drainCommands() {
	for i := 0; i < maxCommandsPerTick; i++ {
		cmd, ok := e.commands.Pop()
		if !ok {
			return
		}
		e.apply(cmd)
	}
}

// apply dispatches one command to its mutation, matching the teacher's
// per-variant private methods (addMixer, removeMixer, addAudioStream, …).
func (e *Engine) apply(cmd Command) {
	if cmd.Kind == AddMixer {
		e.addMixer(cmd)
		return
	}

	if cmd.Mixer < 0 || int(cmd.Mixer) >= maxMixers {
		return
	}
	m := e.mixers[cmd.Mixer]
	if m == nil {
		return // stale handle: mixer already destroyed
	}

	switch cmd.Kind {
	case RemoveMixer:
		e.mixers[cmd.Mixer] = nil
	case AddAudioStream:
		m.AddAudioStream(cmd)
	case RemoveAudioStream:
		m.RemoveAudioStream(cmd)
	case AddVideoStream:
		m.AddVideoStream(cmd)
	case RemoveVideoStream:
		m.RemoveVideoStream(cmd)
	case AddDataStream:
		m.AddDataStream(cmd)
	case RemoveDataStream:
		m.RemoveDataStream(cmd)
	case AddRecordingStream:
		m.AddRecordingStream(cmd)
	case RemoveRecordingStream:
		m.RemoveRecordingStream(cmd)
	case StartRecording:
		m.StartRecording(cmd)
	case StopRecording:
		m.StopRecording(cmd)
	case StartTransport:
		m.StartTransport(cmd)
	case ReconfigureAudioStream:
		m.ReconfigureAudioStream(cmd)
	case ReconfigureVideoStream:
		m.ReconfigureVideoStream(cmd)
	case PinEndpoint:
		m.PinEndpoint(cmd)
	case SendEndpointMessage:
		m.SendEndpointMessage(cmd)
	case SctpControl:
		m.SctpControl(cmd)
	case AddPacketCache:
		m.AddPacketCache(cmd)
	}
}

// addMixer installs cmd.NewMixer's result at cmd.Mixer, the handle the
// caller chose when constructing the command. An out-of-range handle, a
// nil constructor, or an already-occupied slot silently drops the command,
// matching the engine-wide "resource exhaustion is non-fatal back-pressure"
// rule — callers are responsible for picking a free handle (e.g. by
// tracking MixerCount/MixerAt) before submitting AddMixer.
func (e *Engine) addMixer(cmd Command) {
	if cmd.NewMixer == nil || cmd.Mixer < 0 || int(cmd.Mixer) >= maxMixers {
		return
	}
	if e.mixers[cmd.Mixer] != nil {
		return
	}
	e.mixers[cmd.Mixer] = cmd.NewMixer()
}

// tickMixers calls Tick on every live mixer, in table order.
func (e *Engine) tickMixers(now time.Time) {
	for _, m := range e.mixers {
		if m != nil {
			m.Tick(now)
		}
	}
}

// publishStats sums every live mixer's GatherStats into one EngineStats
// snapshot and publishes it.
func (e *Engine) publishStats(now time.Time) {
	var s EngineStats
	s.AvgIdle = e.idleTracker.value * 100
	s.TimeSlipCount = e.timeSlips
	s.PollPeriodMs = uint32(e.tickPeriod / time.Millisecond)

	for _, m := range e.mixers {
		if m == nil {
			continue
		}
		m.GatherStats(&s.ActiveMixers)
	}
	e.stats.Publish(s)
}

// MixerCount returns how many table slots are currently occupied. Intended
// for tests and diagnostics, not the hot path.
func (e *Engine) MixerCount() int {
	n := 0
	for _, m := range e.mixers {
		if m != nil {
			n++
		}
	}
	return n
}

// MixerAt returns the mixer installed at handle, or nil if the slot is
// empty or handle is out of range. Intended for tests and diagnostics.
func (e *Engine) MixerAt(handle MixerHandle) Mixer {
	if handle < 0 || int(handle) >= maxMixers {
		return nil
	}
	return e.mixers[handle]
}
