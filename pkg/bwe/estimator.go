// Package bwe implements receiver-side bandwidth estimation for a
// conferencing media bridge: an unscented Kalman filter tracks queued
// network bits, available bandwidth, and sender/receiver clock offset from
// one-way packet delay observations, with a congestion sub-model that
// detects and gradually releases sustained overuse.
package bwe

import (
	"math"
	"time"
)

// dimensionality is the state vector's size: queued bits, bandwidth, clock
// offset.
const dimensionality = 3

// BandwidthEstimator tracks one peer's available downlink bandwidth from
// packet arrival timing alone, reporting an estimate other components can
// turn into REMB feedback or an admission-control target.
type BandwidthEstimator struct {
	config Config

	weightCovariance0 float64
	weightCovariance  float64
	weightMean        float64
	weightMean0       float64
	sigmaWeight       float64

	processNoise stateVector
	state        stateVector
	covarianceP  covMatrix

	baseClockOffsetNs      int64
	previousTransmitTimeNs uint64
	previousReceiveTimeNs  uint64
	observedDelayMs        float64
	packetSize0            uint32

	congestion congestionState
	receiveBitrate rateTracker

	ssrcs         map[uint32]struct{}
	rembScheduler *REMBScheduler
	sendTime      sendTimeUnwrapper
	epoch         time.Time
}

// NewBandwidthEstimator constructs an estimator from config, which is
// sanitized in place before use.
func NewBandwidthEstimator(config Config) *BandwidthEstimator {
	config.Sanitize()

	lambda := config.Alpha * config.Alpha * (dimensionality + config.Kappa)
	weightCovariance := 1.0 / (2.0 * (dimensionality + lambda))

	e := &BandwidthEstimator{
		config:            config,
		weightCovariance0: lambda/(dimensionality+lambda) + (1 + config.Beta - config.Alpha*config.Alpha),
		weightCovariance:  weightCovariance,
		weightMean:        weightCovariance,
		weightMean0:       1.0 - weightCovariance*dimensionality*2.0,
		sigmaWeight:       math.Sqrt(dimensionality + lambda),
		processNoise:      stateVector{0, 40, 0.01},
		receiveBitrate:    newRateTracker(50 * time.Millisecond),
		ssrcs:             make(map[uint32]struct{}),
		congestion:        newCongestionState(0),
	}
	e.resetState()
	return e
}

func (e *BandwidthEstimator) resetState() {
	e.state = stateVector{0, e.config.Estimate.InitialKbpsDownlink, 0}
	initDelta := stateVector{8000.0 * 8, e.config.Estimate.InitialKbpsDownlink * 0.001, 0.1}
	e.covarianceP = outerProduct(initDelta)
}

// SetREMBScheduler attaches the scheduler MaybeBuildREMB delegates to.
func (e *BandwidthEstimator) SetREMBScheduler(s *REMBScheduler) {
	e.rembScheduler = s
}

// GetSSRCs returns every media SSRC observed so far, for REMB's SSRC list.
func (e *BandwidthEstimator) GetSSRCs() []uint32 {
	result := make([]uint32, 0, len(e.ssrcs))
	for ssrc := range e.ssrcs {
		result = append(result, ssrc)
	}
	return result
}

// MaybeBuildREMB asks the attached scheduler whether a REMB is due and, if
// so, builds one from the current estimate and observed SSRCs.
func (e *BandwidthEstimator) MaybeBuildREMB(now time.Time) ([]byte, bool, error) {
	if e.rembScheduler == nil {
		return nil, false, nil
	}
	estimateBps := int64(e.GetEstimate(uint64(now.UnixNano())) * 1000)
	return e.rembScheduler.MaybeSendREMB(estimateBps, e.GetSSRCs(), now)
}

// OnPacket is the RTP-facing entry point: it turns pkt's wrapping 24-bit
// abs-send-time into a continuous transmit timeline (relative to the first
// packet ever observed) and feeds the result to OnPacketReceived. Returns
// the current estimate in bits per second.
func (e *BandwidthEstimator) OnPacket(pkt PacketInfo) int64 {
	e.ssrcs[pkt.SSRC] = struct{}{}

	if e.epoch.IsZero() {
		e.epoch = pkt.ArrivalTime
	}
	receiveTimeNs := uint64(pkt.ArrivalTime.Sub(e.epoch).Nanoseconds())
	transmitTimeNs := uint64(e.sendTime.unwrap(pkt.SendTime))

	e.OnPacketReceived(uint32(pkt.Size), transmitTimeNs, receiveTimeNs)
	return int64(e.GetEstimate(receiveTimeNs) * 1000)
}

// OnUnmarkedTraffic accounts for a packet whose timing extension could not
// be parsed: its bytes still occupy the network queue and count toward the
// incoming rate, but they contribute no delay observation.
func (e *BandwidthEstimator) OnUnmarkedTraffic(packetSize uint32, receiveTimeNs uint64) {
	if e.baseClockOffsetNs != 0 && e.state[idxQueuedBits] < float64(e.config.Mtu*2*8) {
		e.state[idxQueuedBits] += float64(packetSize) * 8
	}
	e.previousReceiveTimeNs = receiveTimeNs
	e.receiveBitrate.update(float64(packetSize)*8, int64(receiveTimeNs))
}

// OnPacketReceived is the estimator's core update: given a packet's size
// and its transmit/receive timestamps on a continuous nanosecond timeline,
// it runs one step of the unscented Kalman filter and updates the
// congestion sub-state.
func (e *BandwidthEstimator) OnPacketReceived(packetSize uint32, transmitTimeNs, receiveTimeNs uint64) {
	if e.baseClockOffsetNs == 0 && e.state[idxQueuedBits] == 0 && e.previousTransmitTimeNs == 0 {
		e.baseClockOffsetNs = int64(receiveTimeNs) - int64(transmitTimeNs)
		e.previousTransmitTimeNs = transmitTimeNs - uint64(5*time.Second)
		e.previousReceiveTimeNs = receiveTimeNs - uint64(5*time.Millisecond)
		e.packetSize0 = packetSize
	}

	tau := float64(transmitTimeNs-e.previousTransmitTimeNs) / float64(time.Millisecond)
	if tau < 0 {
		tau = 0
	}
	observedDelay := float64(int64(receiveTimeNs)-int64(transmitTimeNs)-e.baseClockOffsetNs) / float64(time.Millisecond)

	actualDelay := observedDelay - e.state[idxClockOffset]
	if actualDelay < 0 {
		e.state[idxQueuedBits] = 0
		e.state[idxClockOffset] = observedDelay
		actualDelay = 0
		e.packetSize0 = packetSize
	}

	expectedState := transitionState(&e.config, packetSize, tau, e.state)
	expectedDelay := predictAbsoluteDelay(expectedState, float64(e.packetSize0)*8)
	e.congestion.countDelays(observedDelay - expectedDelay)

	processNoise := e.processNoise
	measurementNoise := e.config.MeasurementNoise
	e.calculateProcessNoise(expectedState, observedDelay-expectedDelay, receiveTimeNs, &processNoise, &measurementNoise)
	measurementNoise *= e.analyseCongestion(expectedState, actualDelay, observedDelay-expectedDelay, packetSize, receiveTimeNs)

	e.receiveBitrate.update(float64(packetSize)*8, int64(receiveTimeNs))

	sigmaPoints := generateSigmaPoints(e.state, e.covarianceP, processNoise, e.sigmaWeight)

	var predictedDelays [numSigmaPoints]float64
	for i := range sigmaPoints {
		sigmaPoints[i] = transitionState(&e.config, packetSize, tau, sigmaPoints[i])
		predictedDelays[i] = predictAbsoluteDelay(sigmaPoints[i], float64(e.packetSize0)*8)
	}
	predictedMeanDelay := predictedDelays[0]

	predictedDelays[numSigmaPoints-2] += measurementNoise
	predictedDelays[numSigmaPoints-1] -= measurementNoise

	var predictedMeanState stateVector
	for i := 1; i < len(sigmaPoints); i++ {
		predictedMeanState = addVec(predictedMeanState, sigmaPoints[i])
	}
	predictedMeanState = scaleVec(predictedMeanState, e.weightMean)
	predictedMeanState = addVec(predictedMeanState, scaleVec(sigmaPoints[0], e.weightMean0))

	deviations := sigmaPoints
	for i := range deviations {
		deviations[i] = subVec(deviations[i], predictedMeanState)
	}

	statePredictionCovariance := scaleMat(outerProduct(deviations[0]), e.weightCovariance0)
	for i := 1; i < len(deviations); i++ {
		statePredictionCovariance = addMat(statePredictionCovariance, scaleMat(outerProduct(deviations[i]), e.weightCovariance))
	}

	residual0 := predictedDelays[0] - predictedMeanDelay
	covDelay := e.weightCovariance0 * residual0 * residual0
	crossCovariance := scaleVec(deviations[0], e.weightCovariance0*residual0)
	for i := 1; i < len(predictedDelays); i++ {
		residual := predictedDelays[i] - predictedMeanDelay
		covDelay += e.weightCovariance * residual * residual
		crossCovariance = addVec(crossCovariance, scaleVec(deviations[i], e.weightCovariance*residual))
	}

	prevClockOffset := e.state[idxClockOffset]
	kalmanGain := scaleVec(crossCovariance, 1.0/covDelay)
	e.state = addVec(predictedMeanState, scaleVec(kalmanGain, observedDelay-predictedMeanDelay))
	e.covarianceP = subMat(statePredictionCovariance, scaleMat(outerProductVV(crossCovariance, kalmanGain), 1))

	if e.state[idxClockOffset] < prevClockOffset {
		e.state[idxClockOffset] = prevClockOffset
	}
	e.sanitizeState(observedDelay, float64(packetSize)*8)

	e.covarianceP = makeSymmetric(e.covarianceP)

	e.observedDelayMs = observedDelay
	e.previousReceiveTimeNs = receiveTimeNs
	e.previousTransmitTimeNs = transmitTimeNs
}

func (e *BandwidthEstimator) sanitizeState(observedDelay, packetBits float64) {
	e.state[idxBandwidth] = clampFloat(e.state[idxBandwidth], e.config.ModelMinBandwidth, e.config.Estimate.MaxKbps)

	if packetBits > e.state[idxQueuedBits] {
		e.state[idxQueuedBits] = packetBits
	}

	if observedDelay-predictAbsoluteDelay(e.state, float64(e.packetSize0)*8) < 0 && e.state[idxQueuedBits] > float64(e.config.Mtu*3) {
		delayErr := predictAbsoluteDelay(e.state, float64(e.packetSize0)*8) - observedDelay
		e.state[idxQueuedBits] -= delayErr * e.state[idxBandwidth] / 3
		if e.state[idxQueuedBits] < packetBits {
			e.state[idxQueuedBits] = packetBits
		}
	}

	e.state[idxQueuedBits] = clampFloat(e.state[idxQueuedBits], packetBits, e.config.MaxNetworkQueueBytes*8)
	e.state[idxClockOffset] = math.Min(observedDelay, e.state[idxClockOffset])
}

func (e *BandwidthEstimator) calculateProcessNoise(currentState stateVector, observationError float64, receiveTimeNs uint64, processNoise *stateVector, measurementNoise *float64) {
	*measurementNoise = e.config.MeasurementNoise

	longerQueue := float64(e.config.Mtu * 8 * 2)
	if e.congestion.consecutiveOver == 0 {
		e.congestion.estimateBeforeCongestion = currentState[idxBandwidth]
		e.congestion.timestampUncongested = int64(receiveTimeNs)
	}

	switch {
	case observationError < -0.5 && currentState[idxBandwidth] < 8000:
		processNoise[idxBandwidth] = 300
		*measurementNoise *= 0.005
	case e.congestion.consecutiveUnder > 5 ||
		(e.congestion.consecutiveOver > 30 &&
			int64(receiveTimeNs)-e.congestion.timestampUncongested > int64(time.Millisecond)*e.config.Congestion.ToleratedCongestionDurationMs):
		processNoise[idxBandwidth] = 300
		*measurementNoise *= 5.0 / float64(e.congestion.consecutiveUnder+e.congestion.consecutiveOver)
	case currentState[idxQueuedBits] > longerQueue && e.congestion.consecutiveOver < 5:
		processNoise[idxBandwidth] = 200
		*measurementNoise *= longerQueue * 2.0 / (longerQueue + currentState[idxQueuedBits])
	}
}

func (e *BandwidthEstimator) analyseCongestion(expectedState stateVector, actualDelay, owdError float64, packetSize uint32, timestampNs uint64) float64 {
	e.congestion.onNewEstimate(e.state[idxBandwidth])

	if owdError > 5 && expectedState[idxQueuedBits] < float64(packetSize)*8+80 {
		e.congestion.holdScale = 10000
	}

	congestionScale := e.congestion.holdScale
	if e.congestion.holdScale > 1 {
		e.congestion.holdScale += (1.0 - e.congestion.holdScale) * 0.001
		if e.congestion.holdScale < 1.0001 || e.congestion.consecutiveOver == 0 {
			e.congestion.holdScale = 1.0
		}
		congestionScale = e.congestion.holdScale
	}

	if e.congestion.consecutiveOver > 25 && actualDelay > e.config.Congestion.ThresholdMs {
		if e.congestion.consecutiveOver == 26 {
			e.congestion.start = int64(timestampNs)
			drainRatio := e.state[idxQueuedBits] / (e.config.Congestion.RecoveryTimeSeconds * 1000 * e.state[idxBandwidth])
			e.congestion.margin = math.Min(drainRatio, e.config.Congestion.BackOff)
		}
	}

	if e.congestion.margin > 0 {
		if actualDelay < e.config.Congestion.ThresholdMs/2 {
			e.congestion.margin = 0
		} else {
			drainRatio := e.state[idxQueuedBits] / (e.config.Congestion.RecoveryTimeSeconds * 1000 * e.state[idxBandwidth])
			e.congestion.margin = math.Max(e.congestion.margin, math.Min(drainRatio, e.config.Congestion.BackOff))
		}
	}

	if e.congestion.trigger.update(actualDelay) == flankSwitchOn {
		e.congestion.dip.count++
		if e.congestion.dip.count > e.config.Congestion.Cap.CongestionEventLimit {
			e.congestion.dip.intensity = 1.0
		}
	}

	if e.congestion.dip.intensity < 0.1 {
		e.congestion.dip.bandwidthCapKbps = maxCapKbps
		e.congestion.dip.bandwidthFloorKbps = 0
	} else {
		e.congestion.dip.bandwidthCapKbps = math.Max(e.config.Estimate.MinKbps, e.congestion.avgEstimate*e.config.Congestion.Cap.Ratio)
		if e.congestion.dip.bandwidthCapKbps < maxCapKbps &&
			int64(timestampNs)-e.congestion.start < int64(time.Millisecond)*e.config.Congestion.Cap.ChokeToleranceMs {
			e.congestion.dip.bandwidthFloorKbps = e.congestion.dip.bandwidthCapKbps
		} else {
			e.congestion.dip.bandwidthFloorKbps = 0
		}
	}

	return congestionScale
}

// GetEstimate returns the current downlink bandwidth estimate in kbps as of
// timestampNs, applying the silence fallback if the stream has gone quiet
// and the congestion margin/floor otherwise.
func (e *BandwidthEstimator) GetEstimate(timestampNs uint64) float64 {
	estimatedBandwidth := math.Min(e.state[idxBandwidth], e.congestion.dip.bandwidthCapKbps)
	if e.congestion.consecutiveOver < 50 {
		estimatedBandwidth = clampFloat(e.state[idxBandwidth], e.congestion.estimateBeforeCongestion, e.congestion.dip.bandwidthCapKbps)
	}

	if e.previousReceiveTimeNs != 0 &&
		int64(timestampNs)-int64(e.previousReceiveTimeNs) > e.config.Silence.TimeoutMs*int64(time.Millisecond) {
		return clampFloat(estimatedBandwidth*(1.0-e.config.Silence.BackOff), e.config.Estimate.MinReportedKbps, e.config.Silence.MaxBandwidthKbps)
	}

	return math.Max(e.congestion.dip.bandwidthFloorKbps, math.Max(e.config.Estimate.MinReportedKbps, estimatedBandwidth*(1.0-e.congestion.margin)))
}

// GetIncomingRate returns the smoothed incoming bitrate in bits per second,
// independent of the bandwidth estimate itself.
func (e *BandwidthEstimator) GetIncomingRate() float64 {
	return e.receiveBitrate.Rate()
}

// GetDelay returns the current one-way delay estimate in ms, excluding
// clock offset and adjusted for the reference packet's own size.
func (e *BandwidthEstimator) GetDelay() float64 {
	return e.observedDelayMs - e.state[idxClockOffset] + float64(e.packetSize0)*8/e.state[idxBandwidth]
}

// GetCovariance returns the diagonal of the state covariance matrix:
// variance of queued bits, bandwidth, and clock offset, in that order.
func (e *BandwidthEstimator) GetCovariance() stateVector {
	return diagonal(e.covarianceP)
}

// Reset restores the estimator to its construction-time state, except for
// configuration, observed SSRCs and the attached REMB scheduler.
func (e *BandwidthEstimator) Reset() {
	e.resetState()
	e.baseClockOffsetNs = 0
	e.previousTransmitTimeNs = 0
	e.previousReceiveTimeNs = 0
	e.observedDelayMs = 0
	e.packetSize0 = 0
	e.congestion = newCongestionState(0)
	e.receiveBitrate = newRateTracker(50 * time.Millisecond)
	e.sendTime = sendTimeUnwrapper{}
	e.epoch = time.Time{}
}
