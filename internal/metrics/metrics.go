// Package metrics exports pipeline activity as Prometheus metrics. Metrics
// are registered with the default registry; mount promhttp.Handler() to
// serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit metrics
var (
	PacketsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avtranscode_packets_read_total",
			Help: "Total number of compressed units read from the source",
		},
		[]string{"type"},
	)

	PacketsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avtranscode_packets_dropped_total",
			Help: "Total number of units read for dropped tracks",
		},
	)

	PacketsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avtranscode_packets_written_total",
			Help: "Total number of compressed units written to the sink",
		},
		[]string{"type"},
	)
)

// Engine metrics
var (
	FramesTranscoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avtranscode_frames_transcoded_total",
			Help: "Total number of decoded frames submitted to an encoder",
		},
		[]string{"type"},
	)

	FramesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avtranscode_frames_discarded_total",
			Help: "Total number of decoded frames discarded after the encoder was exhausted",
		},
		[]string{"type"},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avtranscode_track_state_transitions_total",
			Help: "Total number of track state transitions by target state",
		},
		[]string{"type", "state"},
	)
)
