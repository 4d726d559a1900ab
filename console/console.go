// Package console is the script-facing log sink. Each Log or Warn call
// renders its arguments, hands the line to a host Writer and registers the
// pending write in the run's ledger without waiting for it.
package console

import (
	"context"

	"github.com/kbukum/scriptkit/format"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/tasks"
)

// Console writes formatted lines to a stdout and a stderr Writer.
type Console struct {
	ledger *tasks.Ledger
	stdout Writer
	stderr Writer
	log    *logger.Logger
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger that reports failed writes.
func WithLogger(log *logger.Logger) Option {
	return func(c *Console) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Console. A nil stderr sends warnings to stdout.
func New(ledger *tasks.Ledger, stdout, stderr Writer, opts ...Option) *Console {
	if stderr == nil {
		stderr = stdout
	}
	c := &Console{
		ledger: ledger,
		stdout: stdout,
		stderr: stderr,
		log:    logger.Get("console"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log writes args to stdout, separated by spaces and followed by a newline.
func (c *Console) Log(args ...any) {
	c.emit(c.stdout, "stdout", args)
}

// Warn writes args to stderr, separated by spaces and followed by a newline.
func (c *Console) Warn(args ...any) {
	c.emit(c.stderr, "stderr", args)
}

// Line renders args the way Log prints them.
func Line(args ...any) string {
	return format.Join(args...) + "\n"
}

func (c *Console) emit(w Writer, stream string, args []any) {
	line := []byte(Line(args...))
	write := w.Write(line)

	tasks.Spawn(context.Background(), c.ledger, func(ctx context.Context) (int, error) {
		n, err := write.Await(ctx)
		if err != nil {
			c.log.Warn("console write failed", logger.Fields(
				logger.FieldStream, stream,
				logger.FieldError, err.Error(),
			))
		}
		return n, err
	})
}
