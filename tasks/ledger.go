package tasks

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
)

// DefaultSettleDelay is how long DrainAll waits before its first cycle so
// operations scheduled alongside the drain call get a chance to register.
const DefaultSettleDelay = 60 * time.Millisecond

// minQuiescence is the shortest pause after a settled generation, so
// goroutines woken by those settlements can register follow-up work before
// the ledger is checked again.
const minQuiescence = time.Millisecond

// lastID is shared by every Ledger so identifiers are unique per process.
var lastID atomic.Uint64

type entry struct {
	id         uint64
	done       <-chan struct{}
	registered time.Time
}

// PendingInfo describes one unsettled operation.
type PendingInfo struct {
	ID  uint64
	Age time.Duration
}

// Ledger records operations that have been registered but have not settled.
type Ledger struct {
	mu sync.Mutex
	// pending is the live generation; new registrations always land here.
	pending map[uint64]*entry
	// draining holds generations handed to a drainer that have not settled yet.
	draining map[uint64]*entry

	settleDelay time.Duration
	log         *logger.Logger
	metrics     *observability.RuntimeMetrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSettleDelay overrides DefaultSettleDelay. Negative values are treated as zero.
func WithSettleDelay(d time.Duration) Option {
	return func(l *Ledger) {
		if d < 0 {
			d = 0
		}
		l.settleDelay = d
	}
}

// WithLogger sets the logger used for ledger diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics records registrations, settlements and drains on m.
func WithMetrics(m *observability.RuntimeMetrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		pending:     make(map[uint64]*entry),
		draining:    make(map[uint64]*entry),
		settleDelay: DefaultSettleDelay,
		log:         logger.Get("tasks"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register tracks op in l and returns a Future that settles with op's
// outcome after the ledger entry has been removed. Register never blocks.
func Register[T any](l *Ledger, op *Future[T]) *Future[T] {
	out, settle := NewFuture[T]()
	id := l.track(out.Done())

	go func() {
		<-op.Done()
		val, err, _ := op.Result()
		l.remove(id, err)
		settle(val, err)
	}()

	return out
}

// Spawn runs fn in its own goroutine and registers it in l.
func Spawn[T any](ctx context.Context, l *Ledger, fn func(ctx context.Context) (T, error)) *Future[T] {
	return Register(l, Go(ctx, fn))
}

func (l *Ledger) track(done <-chan struct{}) uint64 {
	e := &entry{
		id:         lastID.Add(1),
		done:       done,
		registered: time.Now(),
	}

	l.mu.Lock()
	l.pending[e.id] = e
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordTaskRegistered(context.Background())
	}
	l.log.Debug("operation registered", logger.Fields(logger.FieldTaskID, e.id))
	return e.id
}

func (l *Ledger) remove(id uint64, err error) {
	l.mu.Lock()
	delete(l.pending, id)
	delete(l.draining, id)
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordTaskSettled(context.Background(), err)
	}
	if err != nil {
		l.log.Debug("operation failed", logger.Fields(logger.FieldTaskID, id, logger.FieldError, err.Error()))
	}
}

// nextGeneration moves the live generation into the draining set and
// returns everything a drainer still has to wait for. Snapshot and clear
// happen under one lock, so a registration lands either in the returned
// batch or in the next generation.
func (l *Ledger) nextGeneration() []*entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, e := range l.pending {
		l.draining[id] = e
	}
	l.pending = make(map[uint64]*entry)

	batch := make([]*entry, 0, len(l.draining))
	for _, e := range l.draining {
		batch = append(batch, e)
	}
	return batch
}

// DrainAll blocks until no registered operation is outstanding, including
// operations registered while the drain is running. Failures of tracked
// operations are not reported here. It returns a DRAIN_INTERRUPTED error
// only when ctx is done first.
//
// After every settled generation DrainAll pauses for the settle delay (at
// least minQuiescence) before looking again: a goroutine awaiting a tracked
// future wakes at the same moment as the drainer and must get the chance to
// register its own work.
func (l *Ledger) DrainAll(ctx context.Context) error {
	start := time.Now()
	generations := 0

	if !l.pause(ctx, l.settleDelay) {
		return l.interrupted(ctx, start, generations)
	}

	for {
		batch := l.nextGeneration()
		if len(batch) == 0 {
			break
		}
		generations++
		l.log.Debug("draining generation", logger.Fields(
			logger.FieldGeneration, generations,
			logger.FieldPending, len(batch),
		))

		for _, e := range batch {
			select {
			case <-e.done:
			case <-ctx.Done():
				return l.interrupted(ctx, start, generations)
			}
		}

		if !l.pause(ctx, max(l.settleDelay, minQuiescence)) {
			return l.interrupted(ctx, start, generations)
		}
	}

	elapsed := time.Since(start)
	if l.metrics != nil {
		l.metrics.RecordDrain(ctx, generations, elapsed, nil)
	}
	l.log.Debug("ledger drained", logger.Fields(
		logger.FieldGeneration, generations,
		logger.FieldDuration, elapsed.Milliseconds(),
	))
	return nil
}

// pause waits for d, returning false if ctx is done first.
func (l *Ledger) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Ledger) interrupted(ctx context.Context, start time.Time, generations int) error {
	elapsed := time.Since(start)
	err := errors.DrainInterrupted(l.Len(), elapsed, context.Cause(ctx))
	if l.metrics != nil {
		l.metrics.RecordDrain(context.WithoutCancel(ctx), generations, elapsed, err)
	}
	l.log.Warn("drain interrupted", logger.Fields(
		logger.FieldPending, l.Len(),
		logger.FieldError, err.Error(),
	))
	return err
}

// Len returns the number of operations that have not settled yet.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) + len(l.draining)
}

// Pending lists the unsettled operations, oldest first.
func (l *Ledger) Pending() []PendingInfo {
	now := time.Now()

	l.mu.Lock()
	infos := make([]PendingInfo, 0, len(l.pending)+len(l.draining))
	for _, set := range []map[uint64]*entry{l.draining, l.pending} {
		for _, e := range set {
			infos = append(infos, PendingInfo{ID: e.id, Age: now.Sub(e.registered)})
		}
	}
	l.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
