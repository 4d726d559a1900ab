package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name reported on every metric.
	ServiceName string
	// ServiceVersion is the version reported on every metric.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows plain HTTP to the collector.
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns development defaults.
func DefaultMeterConfig(serviceName string) *MeterConfig {
	return &MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs an OTLP-exporting meter provider as the global one.
// The caller owns the returned provider and must shut it down.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric names.
const (
	MetricTasksRegistered  = "scriptkit.tasks.registered"
	MetricTasksPending     = "scriptkit.tasks.pending"
	MetricTasksFailed      = "scriptkit.tasks.failed"
	MetricDrainDuration    = "scriptkit.drain.duration"
	MetricDrainGenerations = "scriptkit.drain.generations"
	MetricScriptRuns       = "scriptkit.script.runs"
	MetricScriptDuration   = "scriptkit.script.duration"
	MetricSourcesCancelled = "scriptkit.sources.cancelled"
)

// RuntimeMetrics holds the instruments recorded by the ledger, the merge
// combinator and the host.
type RuntimeMetrics struct {
	tasksRegistered  metric.Int64Counter
	tasksPending     metric.Int64UpDownCounter
	tasksFailed      metric.Int64Counter
	drainDuration    metric.Float64Histogram
	drainGenerations metric.Int64Histogram
	scriptRuns       metric.Int64Counter
	scriptDuration   metric.Float64Histogram
	sourcesCancelled metric.Int64Counter
}

// NewRuntimeMetrics creates the runtime instruments on meter.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	m := &RuntimeMetrics{}
	var err error

	if m.tasksRegistered, err = meter.Int64Counter(MetricTasksRegistered,
		metric.WithDescription("Operations registered in a ledger"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksRegistered, err)
	}

	if m.tasksPending, err = meter.Int64UpDownCounter(MetricTasksPending,
		metric.WithDescription("Registered operations that have not settled"),
	); err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricTasksPending, err)
	}

	if m.tasksFailed, err = meter.Int64Counter(MetricTasksFailed,
		metric.WithDescription("Registered operations that settled with an error"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksFailed, err)
	}

	if m.drainDuration, err = meter.Float64Histogram(MetricDrainDuration,
		metric.WithDescription("Time spent in DrainAll"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricDrainDuration, err)
	}

	if m.drainGenerations, err = meter.Int64Histogram(MetricDrainGenerations,
		metric.WithDescription("Generations waited on per drain"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricDrainGenerations, err)
	}

	if m.scriptRuns, err = meter.Int64Counter(MetricScriptRuns,
		metric.WithDescription("Script runs by module and status"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricScriptRuns, err)
	}

	if m.scriptDuration, err = meter.Float64Histogram(MetricScriptDuration,
		metric.WithDescription("Script run duration including the final drain"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricScriptDuration, err)
	}

	if m.sourcesCancelled, err = meter.Int64Counter(MetricSourcesCancelled,
		metric.WithDescription("Sources cancelled before exhaustion"),
	); err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricSourcesCancelled, err)
	}

	return m, nil
}

// RecordTaskRegistered counts a new ledger entry.
func (m *RuntimeMetrics) RecordTaskRegistered(ctx context.Context) {
	m.tasksRegistered.Add(ctx, 1)
	m.tasksPending.Add(ctx, 1)
}

// RecordTaskSettled counts a removed ledger entry.
func (m *RuntimeMetrics) RecordTaskSettled(ctx context.Context, err error) {
	m.tasksPending.Add(ctx, -1)
	if err != nil {
		m.tasksFailed.Add(ctx, 1)
	}
}

// RecordDrain records one DrainAll call.
func (m *RuntimeMetrics) RecordDrain(ctx context.Context, generations int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrStatus, statusOf(err)))
	m.drainDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.drainGenerations.Record(ctx, int64(generations), attrs)
}

// RecordScriptRun records a finished script run.
func (m *RuntimeMetrics) RecordScriptRun(ctx context.Context, module string, elapsed time.Duration, err error) {
	m.scriptRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrModule, module),
		attribute.String(AttrStatus, statusOf(err)),
	))
	m.scriptDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String(AttrModule, module),
	))
}

// RecordSourceCancelled counts a source cancelled by a merge.
func (m *RuntimeMetrics) RecordSourceCancelled(ctx context.Context) {
	m.sourcesCancelled.Add(ctx, 1)
}

// statusOf maps err to "ok", its error code, or "error".
func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := errors.As(err); ok {
		return string(appErr.Code)
	}
	return "error"
}
