package bwe

// EstimateConfig bounds the bandwidth value the filter is allowed to report.
type EstimateConfig struct {
	// InitialKbpsDownlink seeds the bandwidth state before any packet has
	// been observed.
	InitialKbpsDownlink float64

	// MaxKbps is the ceiling the filter's bandwidth state is clamped to.
	MaxKbps float64

	// MinKbps floors the congestion dip's bandwidth cap.
	MinKbps float64

	// MinReportedKbps floors every value GetEstimate ever returns.
	MinReportedKbps float64
}

// CongestionCapConfig shapes how hard a detected congestion dip clamps the
// reported estimate, and for how long.
type CongestionCapConfig struct {
	// CongestionEventLimit is how many Schmitt-trigger switch-on events can
	// occur before the dip intensity latches to its maximum.
	CongestionEventLimit int

	// Ratio scales the long-run average estimate into a bandwidth cap once
	// a dip is active.
	Ratio float64

	// ChokeToleranceMs is how long after a congestion episode starts the
	// cap also acts as a floor, preventing the estimate from recovering
	// too quickly.
	ChokeToleranceMs int64
}

// CongestionConfig governs the detection and gradual release of a
// congestion episode once overuse has been observed on enough consecutive
// packets.
type CongestionConfig struct {
	// RecoveryTimeSeconds is, in seconds, how long a drain of the queued backlog
	// should take once congestion is declared. Sanitize clamps this to at
	// least 1 second.
	RecoveryTimeSeconds float64

	// ThresholdMs is the one-way-delay-above-baseline, in ms, past which a
	// long run of overuse is treated as sustained congestion.
	ThresholdMs float64

	// ToleratedCongestionDurationMs is how long overuse must persist before
	// the process noise response in calculateProcessNoise engages.
	ToleratedCongestionDurationMs int64

	// BackOff is the maximum fraction the reported estimate is ever
	// throttled by while draining a detected congestion episode.
	BackOff float64

	Cap CongestionCapConfig
}

// SilenceConfig controls the fallback estimate reported after a stream has
// gone quiet for a while — the filter's own state goes stale once packets
// stop arriving, so a distinct, conservative rule takes over.
type SilenceConfig struct {
	// TimeoutMs is how long without a packet before the silence fallback
	// engages.
	TimeoutMs int64

	// BackOff is the fraction the last known estimate is scaled down by
	// once silence is declared.
	BackOff float64

	// MaxBandwidthKbps ceilings the silence-fallback estimate.
	MaxBandwidthKbps float64
}

// Config parameterizes a BandwidthEstimator. DefaultConfig returns values
// suitable for a 48kHz conferencing audio/video peer; callers needing
// different link assumptions construct their own and call Sanitize.
type Config struct {
	// Alpha, Beta, Kappa are the unscented transform's scaling parameters.
	// Alpha controls sigma point spread around the mean, Beta incorporates
	// prior knowledge of the state distribution (2 is optimal for
	// Gaussians), Kappa is a secondary scaling term.
	Alpha float64
	Beta  float64
	Kappa float64

	// Mtu bounds per-packet size assumptions used when judging whether a
	// queue is "long" relative to a single packet.
	Mtu int

	// MeasurementNoise is the baseline one-way-delay measurement noise
	// variance, before calculateProcessNoise's adaptive scaling.
	MeasurementNoise float64

	// ModelMinBandwidth floors the filter's own bandwidth state (distinct
	// from Estimate.MinReportedKbps, which floors the externally reported
	// value).
	ModelMinBandwidth float64

	// MaxNetworkQueueBytes bounds the queued-bits state.
	MaxNetworkQueueBytes float64

	Estimate   EstimateConfig
	Congestion CongestionConfig
	Silence    SilenceConfig
}

// DefaultConfig returns the filter's standard tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:                0.01,
		Beta:                 2.0,
		Kappa:                0.0,
		Mtu:                  1480,
		MeasurementNoise:     0.005,
		ModelMinBandwidth:    40,
		MaxNetworkQueueBytes: 16000,
		Estimate: EstimateConfig{
			InitialKbpsDownlink: 1000,
			MaxKbps:             20000,
			MinKbps:             100,
			MinReportedKbps:     100,
		},
		Congestion: CongestionConfig{
			RecoveryTimeSeconds:           1.0,
			ThresholdMs:                   100,
			ToleratedCongestionDurationMs: 2000,
			BackOff:                       0.2,
			Cap: CongestionCapConfig{
				CongestionEventLimit: 2,
				Ratio:                0.9,
				ChokeToleranceMs:     5000,
			},
		},
		Silence: SilenceConfig{
			TimeoutMs:        2000,
			BackOff:          0.2,
			MaxBandwidthKbps: 500,
		},
	}
}

// Sanitize clamps fields that must never be zero or negative, matching the
// guard the estimator's constructor relies on before computing derived
// constants.
func (c *Config) Sanitize() {
	if c.Congestion.RecoveryTimeSeconds < 1.0 {
		c.Congestion.RecoveryTimeSeconds = 1.0
	}
	if c.Estimate.InitialKbpsDownlink < 100 {
		c.Estimate.InitialKbpsDownlink = 100
	}
}
