package pipeline

import (
	"context"
)

// Filter keeps only values for which fn reports true.
func (p *Pipeline[T]) Filter(fn func(context.Context, T) (bool, error)) *Pipeline[T] {
	create := p.take()
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &filterIter[T]{source: create(ctx), fn: fn}
	})
}

// Tap calls fn for each value, then passes the value through unchanged.
func (p *Pipeline[T]) Tap(fn func(context.Context, T) error) *Pipeline[T] {
	create := p.take()
	return newPipeline(func(ctx context.Context) Iterator[T] {
		return &tapIter[T]{source: create(ctx), fn: fn}
	})
}

// Combine fans the current sequence in with others; values arrive in the
// order they become ready.
func (p *Pipeline[T]) Combine(others ...*Source[T]) *Pipeline[T] {
	create := p.take()
	for _, s := range others {
		s.bind()
	}
	return newPipeline(func(ctx context.Context) Iterator[T] {
		head := IterSource(create(ctx))
		head.bind()
		return newMergeIter(append([]*Source[T]{head}, others...))
	})
}

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	create := p.take()
	return newPipeline(func(ctx context.Context) Iterator[O] {
		return &mapIter[I, O]{source: create(ctx), fn: fn}
	})
}

// FlatMap transforms each value into an Iterator and splices its values in.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (Iterator[O], error)) *Pipeline[O] {
	create := p.take()
	return newPipeline(func(ctx context.Context) Iterator[O] {
		return &flatMapIter[I, O]{source: create(ctx), fn: fn}
	})
}

// Flatten splices elements that are themselves sequences of any
// (Iterator[any], *Pipeline[any] or *Source[any]) into the outer sequence.
// Only one level is flattened. Every other element passes through
// unchanged, including sequences of a narrower type such as
// Iterator[string]; convert those with Map first.
//
// A spliced Source is bound as if merged on its own, so it is cancelled when
// the flattened pipeline is closed before the Source is exhausted.
func Flatten(p *Pipeline[any]) *Pipeline[any] {
	return FlatMap(p, func(ctx context.Context, v any) (Iterator[any], error) {
		switch nested := v.(type) {
		case Iterator[any]:
			return nested, nil
		case *Pipeline[any]:
			return nested.Iter(ctx), nil
		case *Source[any]:
			return NewMergeIter(nested), nil
		default:
			return &sliceIter[any]{items: []any{v}}, nil
		}
	})
}

// Concat joins pipelines sequentially: every value of the first is yielded
// before the second starts.
func Concat[T any](pipelines ...*Pipeline[T]) *Pipeline[T] {
	creates := make([]func(context.Context) Iterator[T], len(pipelines))
	for i, p := range pipelines {
		creates[i] = p.take()
	}
	return newPipeline(func(ctx context.Context) Iterator[T] {
		iters := make([]Iterator[T], len(creates))
		for i, create := range creates {
			iters[i] = create(ctx)
		}
		return &concatIter[T]{iters: iters}
	})
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type flatMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (Iterator[O], error)
	current Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for {
		if it.current != nil {
			val, ok, err := it.current.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return val, true, nil
			}
			_ = it.current.Close()
			it.current = nil
		}
		in, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		inner, err := it.fn(ctx, in)
		if err != nil {
			return zero, false, err
		}
		it.current = inner
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.current != nil {
		_ = it.current.Close()
		it.current = nil
	}
	return it.source.Close()
}

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) (bool, error)
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		keep, err := it.fn(ctx, val)
		if err != nil {
			return zero, false, err
		}
		if keep {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	if err := it.fn(ctx, val); err != nil {
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type concatIter[T any] struct {
	iters []Iterator[T]
	index int
}

func (it *concatIter[T]) Next(ctx context.Context) (T, bool, error) {
	for it.index < len(it.iters) {
		val, ok, err := it.iters[it.index].Next(ctx)
		if err != nil {
			return val, false, err
		}
		if ok {
			return val, true, nil
		}
		it.index++
	}
	var zero T
	return zero, false, nil
}

func (it *concatIter[T]) Close() error {
	var firstErr error
	for _, iter := range it.iters {
		if err := iter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
