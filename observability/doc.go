// Package observability wires OpenTelemetry tracing and metrics into the
// script runtime.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("scriptkit"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("scriptkit"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewRuntimeMetrics(observability.Meter("scriptkit"))
//	ledger := tasks.New(tasks.WithMetrics(metrics))
//
// Script runs:
//
//	rc := observability.NewRunContext(runID, "hello", metrics)
//	ctx, span := rc.StartRunSpan(ctx)
//	defer rc.EndRun(ctx, span, err)
package observability
