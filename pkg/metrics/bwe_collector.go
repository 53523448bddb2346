package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightcall/bridgecore/pkg/bwe"
)

// BweCollector exposes one BandwidthEstimator's exported state as
// Prometheus metrics: the current bandwidth estimate, one-way delay,
// received bitrate, and the variances of the filter's queued-bits and
// clock-offset estimates (diagonal entries of its state covariance), plus
// how many SSRCs currently feed it. The state values themselves are not
// exported.
type BweCollector struct {
	estimator *bwe.BandwidthEstimator
	epoch     time.Time

	estimateKbps  *prometheus.Desc
	delayMs       *prometheus.Desc
	incomingRate  *prometheus.Desc
	queuedBits    *prometheus.Desc
	clockOffsetMs *prometheus.Desc
	streamCount   *prometheus.Desc
}

// NewBweCollector returns a collector over estimator. epoch is the time
// origin GetEstimate's timestamp argument is measured from; callers that
// already track a monotonic epoch elsewhere (e.g. the one an Engine was
// started with) should pass that same value here so the reported estimate
// reflects "now" rather than a stale reading.
func NewBweCollector(estimator *bwe.BandwidthEstimator, epoch time.Time, constLabels prometheus.Labels) *BweCollector {
	ns := "bridgecore_bwe"
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(ns+"_"+name, help, nil, constLabels)
	}
	return &BweCollector{
		estimator:     estimator,
		epoch:         epoch,
		estimateKbps:  desc("estimate_kbps", "Current available downlink bandwidth estimate."),
		delayMs:       desc("one_way_delay_ms", "Current estimated one-way packet delay."),
		incomingRate:  desc("incoming_rate_kbps", "Measured receive bitrate over the estimator's short averaging window."),
		queuedBits:    desc("queued_bits", "Filter covariance: variance of the estimated bits queued along the network path."),
		clockOffsetMs: desc("clock_offset_ms", "Filter covariance: variance of the estimated sender/receiver clock offset."),
		streamCount:   desc("stream_count", "Number of SSRCs currently feeding this estimator."),
	}
}

func (c *BweCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.estimateKbps
	descs <- c.delayMs
	descs <- c.incomingRate
	descs <- c.queuedBits
	descs <- c.clockOffsetMs
	descs <- c.streamCount
}

func (c *BweCollector) Collect(metrics chan<- prometheus.Metric) {
	nowNs := uint64(time.Since(c.epoch).Nanoseconds())
	cov := c.estimator.GetCovariance()

	metrics <- prometheus.MustNewConstMetric(c.estimateKbps, prometheus.GaugeValue, c.estimator.GetEstimate(nowNs))
	metrics <- prometheus.MustNewConstMetric(c.delayMs, prometheus.GaugeValue, c.estimator.GetDelay())
	metrics <- prometheus.MustNewConstMetric(c.incomingRate, prometheus.GaugeValue, c.estimator.GetIncomingRate()/1000)
	metrics <- prometheus.MustNewConstMetric(c.queuedBits, prometheus.GaugeValue, cov[0])
	metrics <- prometheus.MustNewConstMetric(c.clockOffsetMs, prometheus.GaugeValue, cov[2])
	metrics <- prometheus.MustNewConstMetric(c.streamCount, prometheus.GaugeValue, float64(len(c.estimator.GetSSRCs())))
}

var _ prometheus.Collector = (*BweCollector)(nil)
