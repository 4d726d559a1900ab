package config

import (
	"time"

	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
	"github.com/kbukum/scriptkit/tasks"
	"github.com/kbukum/scriptkit/version"
)

// Config is the full scriptkit configuration.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	Runtime     RuntimeConfig `yaml:"runtime" mapstructure:"runtime"`
	Tracing     TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Script      ScriptConfig  `yaml:"script" mapstructure:"script"`
}

// RuntimeConfig tunes the per-run ledger.
type RuntimeConfig struct {
	// SettleDelay is how long a drain waits before its first pass.
	SettleDelay time.Duration `yaml:"settle_delay" mapstructure:"settle_delay" validate:"gte=0"`
}

// TracingConfig enables OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig enables OTLP metric export.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ScriptConfig names the module to run and its argument.
type ScriptConfig struct {
	Module string `yaml:"module" mapstructure:"module"`
	Arg    string `yaml:"arg" mapstructure:"arg"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "scriptkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()

	if c.Runtime.SettleDelay == 0 {
		c.Runtime.SettleDelay = tasks.DefaultSettleDelay
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 30 * time.Second
	}
}

// Validate checks c against its struct tags and the logging rules.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return invalid("logging", err.Error())
	}
	return nil
}

// TracerConfig converts the tracing section for observability.InitTracer.
func (c *Config) TracerConfig() *observability.TracerConfig {
	tc := observability.DefaultTracerConfig(c.Name)
	tc.ServiceVersion = version.GetShortVersion()
	tc.Environment = c.Environment
	tc.Endpoint = c.Tracing.Endpoint
	tc.Insecure = c.Tracing.Insecure
	tc.SampleRate = c.Tracing.SampleRate
	return tc
}

// MeterConfig converts the metrics section for observability.InitMeter.
func (c *Config) MeterConfig() *observability.MeterConfig {
	mc := observability.DefaultMeterConfig(c.Name)
	mc.ServiceVersion = version.GetShortVersion()
	mc.Environment = c.Environment
	mc.Endpoint = c.Metrics.Endpoint
	mc.Insecure = c.Metrics.Insecure
	mc.Interval = c.Metrics.Interval
	return mc
}
