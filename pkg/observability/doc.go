// Package observability provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing.
//
// # Structured Logging
//
//	log := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	log.WithField("run_id", runID).Info("publish run started")
//
// Loggers travel through context; FromContext returns the default logger when
// none was attached.
//
// # Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.ObservePublish("alembic-cache", elapsed, err)
//
// # Tracing
//
//	providers, err := observability.InitOTel(ctx, cfg, log)
//	defer observability.ShutdownOTel(ctx, providers, log)
package observability
