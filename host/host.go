// Package host runs script modules. Each run gets its own ledger and
// console; the run is finished only once every operation the script left
// behind has settled.
package host

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scriptkit/console"
	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
	"github.com/kbukum/scriptkit/tasks"
)

// Runtime is what a script sees of the host during one run.
type Runtime struct {
	// ID identifies the run in logs, spans and metrics.
	ID      string
	Module  string
	Ledger  *tasks.Ledger
	Console *console.Console
	Log     *logger.Logger
}

// Host runs modules from a Registry.
type Host struct {
	registry    *Registry
	stdout      console.Writer
	stderr      console.Writer
	settleDelay time.Duration
	log         *logger.Logger
	metrics     *observability.RuntimeMetrics
}

// Option configures a Host.
type Option func(*Host)

// WithStdout sets the writer behind Console.Log.
func WithStdout(w console.Writer) Option {
	return func(h *Host) { h.stdout = w }
}

// WithStderr sets the writer behind Console.Warn.
func WithStderr(w console.Writer) Option {
	return func(h *Host) { h.stderr = w }
}

// WithOutput wraps plain io.Writers for stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(h *Host) {
		h.stdout = console.NewStreamWriter("stdout", stdout)
		h.stderr = console.NewStreamWriter("stderr", stderr)
	}
}

// WithSettleDelay sets the settle delay of every run's ledger.
func WithSettleDelay(d time.Duration) Option {
	return func(h *Host) { h.settleDelay = d }
}

// WithLogger sets the host logger.
func WithLogger(log *logger.Logger) Option {
	return func(h *Host) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics records ledger, merge and run metrics on m.
func WithMetrics(m *observability.RuntimeMetrics) Option {
	return func(h *Host) { h.metrics = m }
}

// New creates a Host writing to the process stdout and stderr by default.
func New(registry *Registry, opts ...Option) *Host {
	h := &Host{
		registry:    registry,
		stdout:      console.NewStreamWriter("stdout", os.Stdout),
		stderr:      console.NewStreamWriter("stderr", os.Stderr),
		settleDelay: tasks.DefaultSettleDelay,
		log:         logger.Get("host"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run loads the module registered as name and calls its entry point with
// arg: Default if set, else Main. Whatever the entry point does, the run's
// ledger is drained before Run returns, and a script failure is reported
// only after that drain.
//
// A module without an entry point is drained and logged, not failed.
func (h *Host) Run(ctx context.Context, name, arg string) error {
	mod, ok := h.registry.Lookup(name)
	if !ok {
		err := errors.ModuleNotFound(name)
		h.log.Error("module not found", logger.Fields(logger.FieldModule, name))
		if h.metrics != nil {
			h.metrics.RecordScriptRun(ctx, name, 0, err)
		}
		return err
	}

	rt := h.newRuntime(name)
	rc := observability.NewRunContext(rt.ID, name, h.metrics)
	ctx, span := rc.StartRunSpan(ctx)

	var runErr error
	if entry, kind := mod.entry(); entry != nil {
		rt.Log.Info("script started", logger.Fields("entry", kind))
		runErr = invoke(ctx, rt, entry, arg)
	} else {
		rt.Log.Warn("module has no entry point")
	}

	drainErr := h.drain(ctx, rt)

	err := runErr
	if err == nil {
		err = drainErr
	} else if drainErr != nil {
		rt.Log.Warn("drain after failed script interrupted", logger.ErrorFields("drain", drainErr))
	}

	if err != nil {
		rt.Log.Error("script failed", logger.Fields(
			logger.FieldError, err.Error(),
			logger.FieldDuration, rc.Duration().Milliseconds(),
		))
	} else {
		rt.Log.Info("script finished", logger.Fields(logger.FieldDuration, rc.Duration().Milliseconds()))
	}
	rc.EndRun(context.WithoutCancel(ctx), span, err)
	return err
}

func (h *Host) newRuntime(name string) *Runtime {
	id := uuid.NewString()
	log := h.log.WithFields(logger.Fields(
		logger.FieldRunID, id,
		logger.FieldModule, name,
	))

	opts := []tasks.Option{
		tasks.WithSettleDelay(h.settleDelay),
		tasks.WithLogger(log.WithComponent("tasks")),
	}
	if h.metrics != nil {
		opts = append(opts, tasks.WithMetrics(h.metrics))
	}
	ledger := tasks.New(opts...)

	return &Runtime{
		ID:      id,
		Module:  name,
		Ledger:  ledger,
		Console: console.New(ledger, h.stdout, h.stderr, console.WithLogger(log.WithComponent("console"))),
		Log:     log,
	}
}

func (h *Host) drain(ctx context.Context, rt *Runtime) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanLedgerDrain)

	pending := rt.Ledger.Len()
	span.SetAttributes(attribute.Int(observability.AttrPending, pending))
	err := rt.Ledger.DrainAll(ctx)
	observability.EndSpan(span, err)
	rt.Log.Debug("ledger drained", logger.Fields(logger.FieldPending, pending))
	return err
}

// invoke calls entry, converting a returned error or a panic into a script
// failure.
func invoke(ctx context.Context, rt *Runtime, entry EntryFunc, arg string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ScriptPanic(rt.Module, r, string(debug.Stack()))
		}
	}()
	if err := entry(ctx, rt, arg); err != nil {
		return errors.ScriptFailed(rt.Module, err)
	}
	return nil
}
