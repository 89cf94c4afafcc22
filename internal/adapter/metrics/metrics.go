package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "log_relay"

// Protocol label values.
const (
	ProtocolLog        = "log"
	ProtocolScreenshot = "screenshot"
)

// RelayMetrics holds all Prometheus metrics for the relay.
// Metrics live on their own registry so several relays can run in one process (tests).
type RelayMetrics struct {
	Registry *prometheus.Registry

	LinesTotal           *prometheus.CounterVec
	BytesTotal           *prometheus.CounterVec
	ConnectionsActive    *prometheus.GaugeVec
	ConnectionsTotal     *prometheus.CounterVec
	ScreenshotsTotal     prometheus.Counter
	ScreenshotBytesTotal prometheus.Counter
	FramesAbortedTotal   prometheus.Counter
	RotationsTotal       prometheus.Counter
	PointerFailuresTotal prometheus.Counter
	MirrorDroppedTotal   prometheus.Counter
}

// NewRelayMetrics initializes and registers the Prometheus metrics on a fresh registry.
func NewRelayMetrics() *RelayMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &RelayMetrics{
		Registry: reg,
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "log",
			Name:      "lines_total",
			Help:      "Total number of log lines received by level.",
		}, []string{"level"}),
		BytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "bytes_total",
			Help:      "Total number of bytes read from clients.",
		}, []string{"protocol"}),
		ConnectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connections_active",
			Help:      "Number of currently open client connections.",
		}, []string{"protocol"}),
		ConnectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}, []string{"protocol"}),
		ScreenshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screenshot",
			Name:      "saved_total",
			Help:      "Total number of screenshots written to disk.",
		}),
		ScreenshotBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screenshot",
			Name:      "bytes_total",
			Help:      "Total number of screenshot payload bytes written.",
		}),
		FramesAbortedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screenshot",
			Name:      "frames_aborted_total",
			Help:      "Frames discarded because the connection ended or the frame was rejected.",
		}),
		RotationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logfile",
			Name:      "rotations_total",
			Help:      "Total number of log file rotations.",
		}),
		PointerFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logfile",
			Name:      "pointer_failures_total",
			Help:      "Failed updates of the stable log file pointer.",
		}),
		MirrorDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "dropped_total",
			Help:      "Records not published to the live mirror.",
		}),
	}
}
