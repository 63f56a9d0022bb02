// Package metrics holds the prometheus collectors shared by the capture and
// dispatch pipeline. They register with the default registry and are served
// by promhttp under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camstream"

var (
	FramesGrabbed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_grabbed_total",
		Help:      "Frames successfully read from the source.",
	})

	GrabFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grab_failures_total",
		Help:      "Reads from the source that produced no frame.",
	})

	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Motion gate outcomes by reason.",
	}, []string{"reason"})

	Backpressure = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backpressure_total",
		Help:      "Capture cycles that overran the frame period.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Frames waiting for a worker.",
	})

	Dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatched_total",
		Help:      "Frames handed to the dispatch action, by result.",
	}, []string{"result"})

	CycleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "capture_cycle_seconds",
		Help:      "Time spent grabbing and processing one frame.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	DispatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_seconds",
		Help:      "Duration of the dispatch action per frame.",
		Buckets:   prometheus.DefBuckets,
	})
)
