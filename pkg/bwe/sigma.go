package bwe

// numSigmaPoints is 1 (the mean) + 2*3 (state uncertainty, one pair per
// state dimension) + 2*3 (process noise, one pair per state dimension) + 2
// (measurement noise, added by offsetting the predicted delay rather than
// the state).
const numSigmaPoints = 15

// generateSigmaPoints builds the unscented transform's sample set around
// state: the mean itself, pairs of points spread along each column of the
// state covariance's Cholesky factor (scaled by sigmaWeight), pairs spread along the
// process noise axes, and two trailing copies of the mean that the caller
// perturbs by the measurement noise in delay-space rather than state-space.
//
// Queued-bits and bandwidth offsets are clamped so a sigma point can never
// imply a negative queue or a bandwidth below 10 kbps, which would make
// predictAbsoluteDelay's division blow up.
func generateSigmaPoints(state stateVector, covP covMatrix, processNoise stateVector, sigmaWeight float64) [numSigmaPoints]stateVector {
	var points [numSigmaPoints]stateVector

	seed := identityMat(1e-7)
	l := cholesky(addMat(covP, seed))

	points[0] = state

	maxBandwidthDeviation := state[idxBandwidth] - 10
	if maxBandwidthDeviation < 0 {
		maxBandwidthDeviation = 0
	}

	idx := 1
	for c := 0; c < 3; c++ {
		offset := scaleVec(column(l, c), sigmaWeight)
		offset[idxQueuedBits] = clampFloat(offset[idxQueuedBits], -state[idxQueuedBits], state[idxQueuedBits])
		offset[idxBandwidth] = clampFloat(offset[idxBandwidth], -maxBandwidthDeviation, maxBandwidthDeviation)

		points[idx] = addVec(state, offset)
		points[idx+1] = subVec(state, offset)
		idx += 2
	}

	for i := 0; i < 3; i++ {
		var noise stateVector
		noise[i] = processNoise[i] * sigmaWeight
		noise[idxQueuedBits] = clampFloat(noise[idxQueuedBits], -state[idxQueuedBits], state[idxQueuedBits])
		noise[idxBandwidth] = clampFloat(noise[idxBandwidth], -maxBandwidthDeviation, maxBandwidthDeviation)

		points[idx] = addVec(state, noise)
		points[idx+1] = subVec(state, noise)
		idx += 2
	}

	points[idx] = points[0]
	points[idx+1] = points[0]

	return points
}
