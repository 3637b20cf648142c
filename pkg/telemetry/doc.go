// Package telemetry provides the observability stack of a wpstarter
// invocation: structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and step events.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Logging.Level = "debug"
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/wpstarter.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Steps are instrumented through a StepScope:
//
//	scope := tel.StartStep(ctx, runID, "wp-config")
//	status, err := step.Run(scope.Ctx, cfg, paths)
//	scope.End(status.String(), message, err)
//
// End closes the step span, records the step_duration_seconds histogram and
// steps_run_total counter and publishes a step.completed event.
//
// # Logging
//
// Output is "stderr" (default), "stdout" or a file path. File output is
// rotated by lumberjack using MaxSizeMB, MaxBackups and MaxAgeDays.
//
// # Tracing
//
// Exporters: none (spans are created but dropped), stdout, otlp (gRPC).
// Spans are exported synchronously since a run is short-lived.
//
// # Metrics
//
// Metrics live in a private registry. They are written once at Shutdown to
// MetricsConfig.TextfilePath in the node_exporter textfile format.
package telemetry
