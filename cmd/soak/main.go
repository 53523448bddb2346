// Soak test runner for long-duration validation of the bandwidth estimator
// and engine running together.
//
// This tool simulates traffic and monitors both components for memory
// leaks, timestamp-related failures, and estimate anomalies over extended
// periods (up to 24 hours or more).
//
// Usage:
//
//	go run ./cmd/soak -duration 24h
//	go run ./cmd/soak -duration 1h  # shorter test
//
// Exposes pprof at :6060/debug/pprof and Prometheus metrics at
// :6060/metrics for live profiling and scraping.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/brightcall/bridgecore/pkg/bwe"
	"github.com/brightcall/bridgecore/pkg/engine"
	"github.com/brightcall/bridgecore/pkg/metrics"
)

const (
	packetSize            = 1200 // bytes
	packetIntervalMs      = 20   // 50 pps
	absSendTimeUnitsPerMs = 262  // 1ms in abs-send-time units
	statusIntervalMinutes = 5
)

// soakResult accumulates the outcome of one run for the final summary.
type soakResult struct {
	Duration         time.Duration
	TotalPackets     int
	FinalEstimate    int64
	PeakHeapMB       float64
	TotalGCCycles    uint32
	WraparoundCount  int
	SuspiciousEvents int
	Status           string
}

func main() {
	duration := flag.Duration("duration", 24*time.Hour, "Test duration (e.g., 1h, 24h)")
	httpPort := flag.Int("http-port", 6060, "Port for the pprof and /metrics HTTP server")
	flag.Parse()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	reg := prometheus.NewRegistry()
	eng := engine.New(nil)
	estimator := bwe.NewBandwidthEstimator(bwe.DefaultConfig())
	epoch := time.Now()

	reg.MustRegister(metrics.NewEngineCollector(eng, nil))
	reg.MustRegister(metrics.NewBweCollector(estimator, epoch, nil))

	log.WithFields(logrus.Fields{
		"duration": duration.String(),
		"httpAddr": fmt.Sprintf(":%d", *httpPort),
	}).Info("starting soak test runner")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
		addr := fmt.Sprintf(":%d", *httpPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Warn("http server exited")
		}
	}()

	go eng.Run()
	defer eng.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down gracefully")
		cancel()
	}()

	result := runSoakTest(ctx, log, estimator, epoch, *duration)
	printSummary(log, result)

	if result.Status == "PASS" {
		os.Exit(0)
	}
	os.Exit(1)
}

func runSoakTest(ctx context.Context, log *logrus.Logger, estimator *bwe.BandwidthEstimator, epoch time.Time, duration time.Duration) soakResult {
	result := soakResult{Status: "PASS"}

	var memStats runtime.MemStats
	sendTime := uint32(0)
	var lastSendTime uint32

	startTime := time.Now()
	lastStatusTime := startTime
	statusInterval := time.Duration(statusIntervalMinutes) * time.Minute

	packetInterval := time.Duration(packetIntervalMs) * time.Millisecond
	ticker := time.NewTicker(packetInterval)
	defer ticker.Stop()

	log.Info("soak test started")

	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(startTime)
			return result

		case now := <-ticker.C:
			elapsed := now.Sub(startTime)
			if elapsed >= duration {
				result.Duration = elapsed
				return result
			}

			if sendTime < lastSendTime && result.TotalPackets > 0 {
				result.WraparoundCount++
			}
			lastSendTime = sendTime

			pkt := bwe.PacketInfo{
				ArrivalTime: now,
				SendTime:    sendTime,
				Size:        packetSize,
				SSRC:        0x12345678,
			}

			estimate := estimator.OnPacket(pkt)
			result.TotalPackets++
			result.FinalEstimate = estimate

			if math.IsNaN(float64(estimate)) {
				log.WithField("elapsed", elapsed).Error("NaN estimate detected")
				result.SuspiciousEvents++
				result.Status = "FAIL"
			}
			if math.IsInf(float64(estimate), 0) {
				log.WithField("elapsed", elapsed).Error("Inf estimate detected")
				result.SuspiciousEvents++
				result.Status = "FAIL"
			}
			if estimate <= 0 {
				log.WithFields(logrus.Fields{"elapsed": elapsed, "estimate": estimate}).Warn("non-positive estimate")
				result.SuspiciousEvents++
			}

			sendTime = (sendTime + uint32(packetIntervalMs*absSendTimeUnitsPerMs)) % bwe.AbsSendTimeMax

			if now.Sub(lastStatusTime) >= statusInterval {
				lastStatusTime = now
				runtime.ReadMemStats(&memStats)

				heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
				if heapMB > result.PeakHeapMB {
					result.PeakHeapMB = heapMB
				}
				result.TotalGCCycles = memStats.NumGC

				log.WithFields(logrus.Fields{
					"elapsed":      elapsed,
					"packets":      result.TotalPackets,
					"estimateMbps": float64(estimate) / (1024 * 1024),
					"heapMB":       heapMB,
					"numGC":        memStats.NumGC,
				}).Info("status")

				if heapMB > 100 {
					log.WithField("heapMB", heapMB).Error("memory limit exceeded")
					result.Status = "FAIL"
				}
			}
		}
	}
}

func printSummary(log *logrus.Logger, result soakResult) {
	log.WithFields(logrus.Fields{
		"duration":          result.Duration.Round(time.Second),
		"totalPackets":      result.TotalPackets,
		"finalEstimateMbps": float64(result.FinalEstimate) / (1024 * 1024),
		"peakHeapMB":        result.PeakHeapMB,
		"totalGCCycles":     result.TotalGCCycles,
		"wraparounds":       result.WraparoundCount,
		"suspiciousEvents":  result.SuspiciousEvents,
		"status":            result.Status,
	}).Info("soak test complete")
}
