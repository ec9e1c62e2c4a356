package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports scan telemetry to Prometheus
type Metrics struct {
	scans         *prometheus.CounterVec
	findings      *prometheus.CounterVec
	detectorFails *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	detectorTime  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamscan_scans_total",
			Help: "Total number of scanned messages by verdict",
		}, []string{"verdict"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamscan_findings_total",
			Help: "Total number of findings by kind",
		}, []string{"kind"}),
		detectorFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spamscan_detector_failures_total",
			Help: "Detector runs that failed or timed out",
		}, []string{"detector", "state"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spamscan_scan_duration_seconds",
			Help:    "Time to produce a verdict",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		detectorTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spamscan_detector_duration_seconds",
			Help:    "Time spent in each detector",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"detector"}),
	}

	for _, c := range []prometheus.Collector{m.scans, m.findings, m.detectorFails, m.scanDuration, m.detectorTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveScan records a finished scan
func (m *Metrics) ObserveScan(d time.Duration, spam bool) {
	verdict := "ham"
	if spam {
		verdict = "spam"
	}
	m.scans.WithLabelValues(verdict).Inc()
	m.scanDuration.Observe(d.Seconds())
}

// ObserveFinding counts one finding of kind
func (m *Metrics) ObserveFinding(kind string) {
	m.findings.WithLabelValues(kind).Inc()
}

// ObserveDetector records one detector run
func (m *Metrics) ObserveDetector(name string, d time.Duration, state string) {
	m.detectorTime.WithLabelValues(name).Observe(d.Seconds())
	if state != "done" {
		m.detectorFails.WithLabelValues(name, state).Inc()
	}
}
