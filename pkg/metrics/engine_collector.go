// Package metrics wraps the engine's published stats and the bandwidth
// estimator's exported fields as prometheus.Collector implementations.
// Both collectors pull on demand during a scrape rather than pushing on
// every update, so neither pkg/engine nor pkg/bwe carries a dependency on
// this package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightcall/bridgecore/pkg/engine"
)

// EngineCollector exposes one Engine's most recently published EngineStats
// snapshot as Prometheus metrics. It holds no mutable state of its own:
// every Collect call reads straight from the engine's MpmcPublish stats
// slot, the same never-torn read any other Stats() caller gets.
type EngineCollector struct {
	eng *engine.Engine

	avgIdle          *prometheus.Desc
	timeSlipCount    *prometheus.Desc
	pollPeriodMs     *prometheus.Desc
	audioInQueues    *prometheus.Desc
	avgQueueSamples  *prometheus.Desc
	maxQueueSamples  *prometheus.Desc
	inboundPackets   *prometheus.Desc
	inboundBytes     *prometheus.Desc
	inboundLost      *prometheus.Desc
	transportDropped *prometheus.Desc
	rcvBufferBytes   *prometheus.Desc
}

// NewEngineCollector returns a collector over eng. constLabels is attached
// to every metric this collector reports, e.g. {"engine": "media-bridge-0"}
// for a process that runs more than one Engine.
func NewEngineCollector(eng *engine.Engine, constLabels prometheus.Labels) *EngineCollector {
	ns := "bridgecore_engine"
	desc := func(name, help string, variableLabels ...string) *prometheus.Desc {
		return prometheus.NewDesc(ns+"_"+name, help, variableLabels, constLabels)
	}
	mediaLabels := []string{"direction"}
	return &EngineCollector{
		eng:              eng,
		avgIdle:          desc("avg_idle_percent", "Exponentially-weighted average of the fraction of each tick period spent idle."),
		timeSlipCount:    desc("time_slip_total", "Number of ticks that missed their deadline since the engine started."),
		pollPeriodMs:     desc("poll_period_ms", "Configured tick period in milliseconds."),
		audioInQueues:    desc("audio_in_queues", "Number of inbound audio jitter queues currently tracked."),
		avgQueueSamples:  desc("audio_in_queue_avg_samples", "Average queued sample count across inbound audio jitter queues."),
		maxQueueSamples:  desc("audio_in_queue_max_samples", "Largest single inbound audio jitter queue depth, in samples."),
		inboundPackets:   desc("packets_total", "Packets processed, by direction.", mediaLabels...),
		inboundBytes:     desc("bytes_total", "Bytes processed, by direction.", mediaLabels...),
		inboundLost:      desc("packets_lost_total", "Packets detected lost, by direction.", mediaLabels...),
		transportDropped: desc("transport_dropped_total", "Datagrams dropped below the mixer, by direction.", mediaLabels...),
		rcvBufferBytes:   desc("transport_rcv_buffer_bytes", "Kernel-configured socket receive buffer size, by direction.", mediaLabels...),
	}
}

func (c *EngineCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.avgIdle
	descs <- c.timeSlipCount
	descs <- c.pollPeriodMs
	descs <- c.audioInQueues
	descs <- c.avgQueueSamples
	descs <- c.maxQueueSamples
	descs <- c.inboundPackets
	descs <- c.inboundBytes
	descs <- c.inboundLost
	descs <- c.transportDropped
	descs <- c.rcvBufferBytes
}

func (c *EngineCollector) Collect(metrics chan<- prometheus.Metric) {
	s := c.eng.Stats()

	metrics <- prometheus.MustNewConstMetric(c.avgIdle, prometheus.GaugeValue, s.AvgIdle)
	metrics <- prometheus.MustNewConstMetric(c.timeSlipCount, prometheus.CounterValue, float64(s.TimeSlipCount))
	metrics <- prometheus.MustNewConstMetric(c.pollPeriodMs, prometheus.GaugeValue, float64(s.PollPeriodMs))
	metrics <- prometheus.MustNewConstMetric(c.audioInQueues, prometheus.GaugeValue, float64(s.ActiveMixers.AudioInQueues))
	metrics <- prometheus.MustNewConstMetric(c.avgQueueSamples, prometheus.GaugeValue, s.ActiveMixers.AvgAudioInQueueSamples())
	metrics <- prometheus.MustNewConstMetric(c.maxQueueSamples, prometheus.GaugeValue, float64(s.ActiveMixers.MaxAudioInQueueSamples))

	c.collectMedia(metrics, "inbound", s.ActiveMixers.Inbound)
	c.collectMedia(metrics, "outbound", s.ActiveMixers.Outbound)
}

func (c *EngineCollector) collectMedia(metrics chan<- prometheus.Metric, direction string, m engine.MediaStats) {
	total := m.Total()
	metrics <- prometheus.MustNewConstMetric(c.inboundPackets, prometheus.CounterValue, float64(total.Packets), direction)
	metrics <- prometheus.MustNewConstMetric(c.inboundBytes, prometheus.CounterValue, float64(total.Bytes), direction)
	metrics <- prometheus.MustNewConstMetric(c.inboundLost, prometheus.CounterValue, float64(total.Lost), direction)
	metrics <- prometheus.MustNewConstMetric(c.transportDropped, prometheus.CounterValue, float64(m.Transport.Dropped), direction)
	metrics <- prometheus.MustNewConstMetric(c.rcvBufferBytes, prometheus.GaugeValue, float64(m.Transport.RcvBufferBytes), direction)
}

var _ prometheus.Collector = (*EngineCollector)(nil)
