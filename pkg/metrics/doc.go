/*
Package metrics defines jamctl's Prometheus metrics.

jamctl exits after every command, so nothing is served over HTTP. When
--metrics-file is set, the registry is written on exit in the text format
understood by node_exporter's textfile collector.

	jamctl_index_requests_total{result}
	jamctl_downloads_total{result}
	jamctl_download_bytes_total
	jamctl_installs_total{outcome}
	jamctl_install_duration_seconds
	jamctl_process_starts_total{result}
	jamctl_process_stops_total{mode}
	jamctl_probe_attempts_total{result}
	jamctl_readiness_wait_seconds

Timer measures a duration into one of the histograms:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReadinessWait)
*/
package metrics
