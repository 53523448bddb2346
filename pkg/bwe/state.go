package bwe

// transitionState advances a state vector by tau milliseconds, draining
// queuedBits at the current bandwidth and adding the newly arrived packet,
// clamping bandwidth to the configured ceiling. Clock offset is a random
// walk and does not evolve under the transition model.
func transitionState(cfg *Config, packetSize uint32, tauMs float64, prev stateVector) stateVector {
	bw := clampFloat(prev[idxBandwidth], 0, cfg.Estimate.MaxKbps)
	queued := prev[idxQueuedBits] - bw*tauMs
	if queued < 0 {
		queued = 0
	}
	queued += float64(packetSize) * 8

	return stateVector{queued, bw, prev[idxClockOffset]}
}

// predictAbsoluteDelay returns the one-way delay, in ms, the state vector
// implies: queuing delay plus clock offset, adjusted so that the very
// first packet's own size doesn't bias the baseline (packetSize0Bits
// divided by bandwidth cancels the transmission time of that reference
// packet out of every subsequent prediction).
func predictAbsoluteDelay(state stateVector, packetSize0Bits float64) float64 {
	offsetAdjustment := packetSize0Bits / state[idxBandwidth]
	return state[idxQueuedBits]/state[idxBandwidth] + state[idxClockOffset] - offsetAdjustment
}
