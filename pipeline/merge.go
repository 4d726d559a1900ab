package pipeline

import (
	"context"

	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
)

type slotState uint8

const (
	// slotPending means the source is live and has one poll in flight
	// (or will have, once the merge starts).
	slotPending slotState = iota
	slotExhausted
)

type tagged[T any] struct {
	index int
	poll  Poll[T]
}

// MergeIter yields the values of several sources in the order they become
// ready. Values from one source keep their relative order.
//
// Closing a MergeIter before every source is exhausted, a failing source, or
// a cancelled context passed to Next cancels each source that has not been
// exhausted, exactly once.
type MergeIter[T any] struct {
	sources []*Source[T]
	slots   []slotState
	live    int
	// results is shared by every source. Each source has at most one poll
	// in flight, so sends never block even after the merge is abandoned.
	results chan tagged[T]

	// runCtx is the context of the first Next; Close reports through it.
	runCtx   context.Context
	started  bool
	finished bool
	log      *logger.Logger
}

// NewMergeIter binds sources to a new merge. It panics if any source is
// already bound to another merge.
func NewMergeIter[T any](sources ...*Source[T]) *MergeIter[T] {
	for _, s := range sources {
		s.bind()
	}
	return newMergeIter(sources)
}

func newMergeIter[T any](sources []*Source[T]) *MergeIter[T] {
	return &MergeIter[T]{
		sources: sources,
		slots:   make([]slotState, len(sources)),
		live:    len(sources),
		results: make(chan tagged[T], len(sources)),
		log:     logger.Get("pipeline"),
	}
}

// Merge creates a pipeline over the completion-order merge of sources.
func Merge[T any](sources ...*Source[T]) *Pipeline[T] {
	return From[T](NewMergeIter(sources...))
}

func (m *MergeIter[T]) issue(index int) {
	m.sources[index].poll(func(p Poll[T]) {
		m.results <- tagged[T]{index: index, poll: p}
	})
}

// Next returns whichever source produces a value first.
func (m *MergeIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if m.finished {
		return zero, false, nil
	}
	if !m.started {
		m.started = true
		m.runCtx = ctx
		m.log.Debug("merge started", logger.Fields(logger.FieldSources, len(m.sources)))
		for i := range m.sources {
			m.issue(i)
		}
	}

	for m.live > 0 {
		select {
		case r := <-m.results:
			if r.poll.Err != nil {
				m.stop(ctx)
				return zero, false, errors.SourceFailed(r.index, r.poll.Err)
			}
			if r.poll.Done {
				m.slots[r.index] = slotExhausted
				m.live--
				continue
			}
			m.issue(r.index)
			return r.poll.Value, true, nil
		case <-ctx.Done():
			m.stop(ctx)
			return zero, false, ctx.Err()
		}
	}

	m.finished = true
	return zero, false, nil
}

// Close cancels every source that is not exhausted. It does not wait for
// the sources to release their resources.
func (m *MergeIter[T]) Close() error {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	m.stop(ctx)
	return nil
}

// Live returns the number of sources that have not been exhausted.
func (m *MergeIter[T]) Live() int {
	return m.live
}

func (m *MergeIter[T]) stop(ctx context.Context) {
	if m.finished {
		return
	}
	m.finished = true

	var metrics *observability.RuntimeMetrics
	if rc := observability.RunContextFromContext(ctx); rc != nil {
		metrics = rc.Metrics
	}

	cancelled := 0
	for i, state := range m.slots {
		if state == slotExhausted {
			continue
		}
		m.sources[i].Cancel()
		cancelled++
		if metrics != nil {
			metrics.RecordSourceCancelled(context.WithoutCancel(ctx))
		}
	}
	if cancelled > 0 {
		m.log.Debug("merge stopped early", logger.Fields(
			logger.FieldSources, len(m.sources),
			"cancelled", cancelled,
		))
	}
}
