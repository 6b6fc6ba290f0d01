package loop

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBargeIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_barge_in_stops_total",
		Help: "Total stop_tts commands sent for barge-ins",
	})

	metricGuardBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_barge_in_guard_blocks_total",
		Help: "Interrupts suppressed by the post-TTS-start guard window",
	})

	metricForwards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loop_forward_text_total",
		Help: "Total forward_text commands sent to workers",
	})

	metricBargeInLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loop_barge_in_latency_ms",
		Help:    "Latency from interrupt transcript receive to tts_stopped (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.6, 10),
	})
)
