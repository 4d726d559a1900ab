package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbukum/scriptkit/logger"
)

// Poll is the outcome of one PollNext.
type Poll[T any] struct {
	Value T
	// Done reports that the source is exhausted; Value is the zero value.
	Done bool
	Err  error
}

// Source wraps one lazy asynchronous sequence behind a pollable interface
// with a one-shot cancellation hook. At most one poll may be in flight.
//
// A Source belongs to at most one merge; binding it twice panics.
type Source[T any] struct {
	iter   Iterator[T]
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	polling   bool
	exhausted bool
	cancelled bool

	closeOnce sync.Once
	bound     atomic.Bool
	log       *logger.Logger
}

// SliceSource wraps a finite collection; it yields each item in order and
// then reports exhaustion.
func SliceSource[T any](items []T) *Source[T] {
	return IterSource[T](&sliceIter[T]{items: items})
}

// IterSource wraps an existing Iterator. The Source owns it from now on.
func IterSource[T any](it Iterator[T]) *Source[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Source[T]{
		iter:   it,
		ctx:    ctx,
		cancel: cancel,
		log:    logger.Get("pipeline"),
	}
}

// PollNext starts pulling the next value and returns a channel that
// receives exactly one Poll.
func (s *Source[T]) PollNext() <-chan Poll[T] {
	ch := make(chan Poll[T], 1)
	s.poll(func(p Poll[T]) { ch <- p })
	return ch
}

// poll runs one Next in its own goroutine and passes the outcome to deliver.
// Exhaustion releases the iterator before deliver runs.
func (s *Source[T]) poll(deliver func(Poll[T])) {
	s.mu.Lock()
	if s.exhausted || s.cancelled {
		s.mu.Unlock()
		deliver(Poll[T]{Done: true})
		return
	}
	if s.polling {
		s.mu.Unlock()
		panic("pipeline: poll already in flight")
	}
	s.polling = true
	s.mu.Unlock()

	go func() {
		val, ok, err := s.iter.Next(s.ctx)

		s.mu.Lock()
		s.polling = false
		done := err == nil && !ok
		if done {
			s.exhausted = true
		}
		release := done || s.cancelled
		s.mu.Unlock()

		if release {
			s.release()
		}
		deliver(Poll[T]{Value: val, Done: done, Err: err})
	}()
}

// Cancel signals the source to stop and release its resources. Only the
// first call has an effect. The release runs once any in-flight poll has
// returned; Cancel never waits for it and a failing Close is only logged.
func (s *Source[T]) Cancel() {
	s.mu.Lock()
	if s.cancelled || s.exhausted {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	inFlight := s.polling
	s.mu.Unlock()

	s.cancel()
	if !inFlight {
		go s.release()
	}
}

// Exhausted reports whether the source has signalled exhaustion.
func (s *Source[T]) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

func (s *Source[T]) release() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.iter.Close(); err != nil {
			s.log.Debug("source release failed", logger.ErrorFields("close", err))
		}
	})
}

func (s *Source[T]) bind() {
	if s.bound.Swap(true) {
		panic("pipeline: source already bound to a merge")
	}
}
