package bwe

// flankEvent reports a Schmitt-trigger transition.
type flankEvent int

const (
	flankNone flankEvent = iota
	flankSwitchOn
	flankSwitchOff
)

// flankLatch is a Schmitt trigger: it reports switchOn the first time a
// value climbs above highThreshold, and switchOff the first time it falls
// below lowThreshold, staying silent in between so noise hovering near one
// threshold doesn't chatter.
type flankLatch struct {
	high, low float64
	on        bool
}

func newFlankLatch(high, low float64) flankLatch {
	return flankLatch{high: high, low: low}
}

func (f *flankLatch) update(value float64) flankEvent {
	if !f.on && value > f.high {
		f.on = true
		return flankSwitchOn
	}
	if f.on && value < f.low {
		f.on = false
		return flankSwitchOff
	}
	return flankNone
}

// congestionDips tracks the short-lived "dip" applied to the reported
// estimate right after a burst of congestion-trigger events, distinct from
// the longer margin-based drain in congestionState.
type congestionDips struct {
	count           int
	intensity       float64
	bandwidthCapKbps float64
	bandwidthFloorKbps float64
}

// maxCapKbps is the sentinel "uncapped" value for bandwidthCapKbps.
const maxCapKbps = 1 << 30

// congestionState accumulates the signals the filter uses to detect and
// gradually release a congestion episode: how many packets in a row showed
// delay above or below the expected value, a long-run average of the
// reported estimate, and the Schmitt-trigger dip state.
type congestionState struct {
	margin                   float64
	start                    int64
	avgEstimate              float64
	estimateBeforeCongestion float64
	timestampUncongested     int64
	holdScale                float64

	consecutiveOver  int
	consecutiveUnder int

	trigger flankLatch
	dip     congestionDips
}

func newCongestionState(margin float64) congestionState {
	return congestionState{
		margin:                   margin,
		estimateBeforeCongestion: 200,
		holdScale:                1,
		trigger:                  newFlankLatch(500.0, 100.0),
		dip:                      congestionDips{bandwidthCapKbps: maxCapKbps},
	}
}

// countDelays updates the consecutive over/under streak from the sign of
// an observed-minus-expected delay residual.
func (c *congestionState) countDelays(delayError float64) {
	switch {
	case delayError > 0:
		c.consecutiveOver++
		c.consecutiveUnder = 0
	case delayError < 0:
		c.consecutiveOver = 0
		c.consecutiveUnder++
	default:
		c.consecutiveOver = 0
		c.consecutiveUnder = 0
	}
}

// onNewEstimate folds the latest bandwidth state into the long-run average
// and lets the dip intensity decay toward zero absent new trigger events.
func (c *congestionState) onNewEstimate(kbps float64) {
	if c.avgEstimate == 0 {
		c.avgEstimate = kbps
	} else {
		c.avgEstimate += 0.001 * (kbps - c.avgEstimate)
	}
	c.dip.intensity -= 0.0005 * c.dip.intensity
}
