// Command scriptkit runs a registered script module and exits once every
// operation the module started has finished.
//
//	scriptkit --module merge-lines --arg a.txt,b.txt
//	scriptkit hello world
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/scriptkit/config"
	"github.com/kbukum/scriptkit/host"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
	"github.com/kbukum/scriptkit/version"
)

const shutdownTimeout = 5 * time.Second

// flagKeys binds command-line flags to config keys.
var flagKeys = map[string]string{
	"script.module":        "module",
	"script.arg":           "arg",
	"runtime.settle_delay": "settle-delay",
	"logging.level":        "log-level",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := pflag.NewFlagSet("scriptkit", pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "path to config.yml")
	fs.StringP("module", "m", "", "module to run")
	fs.StringP("arg", "a", "", "argument passed to the module entry point")
	fs.Duration("settle-delay", 0, "wait before the first drain pass (e.g. 60ms)")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "print version and exit")
	list := fs.Bool("list", false, "list registered modules and exit")
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.GetVersionInfo().String())
		return 0
	}

	registry := builtinModules()
	if *list {
		for _, name := range registry.Names() {
			fmt.Fprintln(out, name)
		}
		return 0
	}

	cfg, err := loadConfig(fs, *configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scriptkit:", err)
		return 2
	}
	logger.Init(&cfg.Logging)
	log := logger.Get("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []host.Option{host.WithSettleDelay(cfg.Runtime.SettleDelay)}
	shutdown, metrics := initObservability(ctx, cfg, log)
	defer shutdown()
	if metrics != nil {
		opts = append(opts, host.WithMetrics(metrics))
	}

	h := host.New(registry, opts...)
	if err := h.Run(ctx, cfg.Script.Module, cfg.Script.Arg); err != nil {
		return 1
	}
	return 0
}

// loadConfig reads configuration. Positional arguments name the module and
// its argument unless the matching flag was given.
func loadConfig(fs *pflag.FlagSet, file string) (*config.Config, error) {
	var cfg config.Config
	if err := config.LoadConfig("scriptkit", &cfg,
		config.WithConfigFile(file),
		config.WithFlags(fs, flagKeys),
	); err != nil {
		return nil, err
	}

	if !fs.Changed("module") && fs.NArg() > 0 {
		cfg.Script.Module = fs.Arg(0)
	}
	if !fs.Changed("arg") && fs.NArg() > 1 {
		cfg.Script.Arg = fs.Arg(1)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// initObservability starts the exporters enabled in cfg. Export failures
// are logged and the run continues without them.
func initObservability(ctx context.Context, cfg *config.Config, log *logger.Logger) (func(), *observability.RuntimeMetrics) {
	var closers []func(context.Context) error

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.TracerConfig())
		if err != nil {
			log.Warn("tracing disabled", logger.ErrorFields("init_tracer", err))
		} else {
			closers = append(closers, tp.Shutdown)
		}
	}

	var metrics *observability.RuntimeMetrics
	if cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, cfg.MeterConfig())
		if err != nil {
			log.Warn("metrics disabled", logger.ErrorFields("init_meter", err))
		} else {
			closers = append(closers, mp.Shutdown)
			metrics, err = observability.NewRuntimeMetrics(observability.Meter(cfg.Name))
			if err != nil {
				log.Warn("metrics disabled", logger.ErrorFields("runtime_metrics", err))
				metrics = nil
			}
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, c := range closers {
			if err := c(ctx); err != nil {
				log.Warn("exporter shutdown failed", logger.ErrorFields("shutdown", err))
			}
		}
	}, metrics
}
