package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// TranscriptionTotal counts STT provider calls by outcome.
	TranscriptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callassist",
		Subsystem: "stt",
		Name:      "transcription_total",
		Help:      "Total number of transcription requests sent to the STT provider, labeled by result.",
	}, []string{"result"})

	// TranscriptionDurationSeconds is end-to-end STT provider call time.
	TranscriptionDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "callassist",
		Subsystem: "stt",
		Name:      "transcription_duration_seconds",
		Help:      "End-to-end time of one STT provider call.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	})

	// ReportGenerationTotal counts report generation attempts by outcome.
	ReportGenerationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callassist",
		Subsystem: "report",
		Name:      "generation_total",
		Help:      "Total number of report generation attempts, labeled by result (ok, parse_failure, provider_error, config_error).",
	}, []string{"result"})

	// ReportGenerationDurationSeconds is end-to-end report generation time.
	ReportGenerationDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "callassist",
		Subsystem: "report",
		Name:      "generation_duration_seconds",
		Help:      "End-to-end time of one report generation attempt.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	})

	// ConnectedWebsocketClients is the current number of live-update listeners.
	ConnectedWebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "callassist",
		Subsystem: "ws",
		Name:      "connected_clients",
		Help:      "Current number of connected websocket clients listening for call updates.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			TranscriptionTotal,
			TranscriptionDurationSeconds,
			ReportGenerationTotal,
			ReportGenerationDurationSeconds,
			ConnectedWebsocketClients,
		)
	})
}
