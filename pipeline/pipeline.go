package pipeline

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Iterator provides pull-based sequential access to a lazy asynchronous
// sequence.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

const errConsumed = "pipeline: stage already consumed"

// Pipeline is a lazy, pull-based sequence builder. Every stage and terminal
// takes ownership of the pipeline it is called on; using a pipeline after
// that panics.
type Pipeline[T any] struct {
	mu       sync.Mutex
	create   func(ctx context.Context) Iterator[T]
	consumed bool
}

func newPipeline[T any](create func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: create}
}

// take transfers ownership of p's sequence to the caller.
func (p *Pipeline[T]) take() func(ctx context.Context) Iterator[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		panic(errConsumed)
	}
	p.consumed = true
	return p.create
}

// Iter consumes p and returns its raw Iterator. The caller must Close it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.take()(ctx)
}

// --- Constructors ---

// From creates a pipeline over an existing Iterator.
func From[T any](iter Iterator[T]) *Pipeline[T] {
	return newPipeline(func(_ context.Context) Iterator[T] {
		return iter
	})
}

// FromSlice creates a pipeline yielding items in order.
func FromSlice[T any](items []T) *Pipeline[T] {
	return newPipeline(func(_ context.Context) Iterator[T] {
		return &sliceIter[T]{items: items}
	})
}

// FromFunc creates a pipeline from a factory that produces an Iterator.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return newPipeline(fn)
}

// Lines returns an Iterator over the lines of r. Close closes r.
func Lines(r io.ReadCloser) Iterator[string] {
	return &lineIter{r: r, scanner: bufio.NewScanner(r)}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type lineIter struct {
	r       io.ReadCloser
	scanner *bufio.Scanner
	once    sync.Once
	err     error
}

func (it *lineIter) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if it.scanner.Scan() {
		return it.scanner.Text(), true, nil
	}
	return "", false, it.scanner.Err()
}

func (it *lineIter) Close() error {
	it.once.Do(func() { it.err = it.r.Close() })
	return it.err
}
