package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every jamctl metric. jamctl is a short-lived command, so
// metrics are exported by writing a node_exporter textfile rather than
// serving an endpoint.
var Registry = prometheus.NewRegistry()

var (
	// Release index metrics
	IndexRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_index_requests_total",
			Help: "Release index requests by result",
		},
		[]string{"result"},
	)

	// Installer metrics
	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_downloads_total",
			Help: "Toolchain archive downloads by result",
		},
		[]string{"result"},
	)

	DownloadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jamctl_download_bytes_total",
			Help: "Bytes of toolchain archives downloaded",
		},
	)

	InstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_installs_total",
			Help: "Install attempts by outcome (committed, reactivated, noop, failed)",
		},
		[]string{"outcome"},
	)

	InstallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamctl_install_duration_seconds",
			Help:    "Time from download start to config commit",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	// Supervisor metrics
	ProcessStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_process_starts_total",
			Help: "Node start attempts by result",
		},
		[]string{"result"},
	)

	ProcessStopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_process_stops_total",
			Help: "Node stops by mode (none, stale, graceful, forced, timeout)",
		},
		[]string{"mode"},
	)

	// Prober metrics
	ProbeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jamctl_probe_attempts_total",
			Help: "Readiness checks by result",
		},
		[]string{"result"},
	)

	ReadinessWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jamctl_readiness_wait_seconds",
			Help:    "Time spent waiting for the node endpoint to become ready",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

func init() {
	Registry.MustRegister(IndexRequestsTotal)
	Registry.MustRegister(DownloadsTotal)
	Registry.MustRegister(DownloadBytesTotal)
	Registry.MustRegister(InstallsTotal)
	Registry.MustRegister(InstallDuration)
	Registry.MustRegister(ProcessStartsTotal)
	Registry.MustRegister(ProcessStopsTotal)
	Registry.MustRegister(ProbeAttemptsTotal)
	Registry.MustRegister(ReadinessWait)
}

// WriteTextfile writes all metrics in the Prometheus text format, suitable
// for the node_exporter textfile collector. The write is atomic.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
