/*
Package monitoring provides Prometheus metrics for the launcher daemon.

# Overview

Metrics cover the control API (request counts, latency, sizes), the
application lifecycle (launches by kind and outcome, active instances,
crashes, close sequences by method, bulk shutdown duration), the process
monitor tick and the Android subsystem status.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	metrics.RecordLaunch("desktop", monitoring.OutcomeSuccess, elapsed)

Tests pass a fresh prometheus.NewRegistry() so collectors can be created
more than once per process.
*/
package monitoring
