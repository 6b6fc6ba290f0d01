package turn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "turn_decisions_total",
		Help: "Barge-in classification decisions by kind",
	}, []string{"kind"})

	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "turn_speech_transitions_total",
		Help: "Agent speaking state transitions",
	}, []string{"from", "to"})
)
