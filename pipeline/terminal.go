package pipeline

import (
	"context"
	"strings"

	"github.com/kbukum/scriptkit/format"
)

// Every terminal consumes its pipeline and closes the iterator it pulled
// from, whether it stops on exhaustion, on an error, or early.

// Collect pulls every value into a slice. On error the values pulled so far
// are returned with it.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	iter := p.Iter(ctx)
	defer iter.Close()
	var out []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}

// Fold left-folds the sequence into an accumulator starting at init.
func Fold[T, R any](ctx context.Context, p *Pipeline[T], init R, fn func(context.Context, R, T) (R, error)) (R, error) {
	iter := p.Iter(ctx)
	defer iter.Close()
	acc := init
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return acc, err
		}
		if !ok {
			return acc, nil
		}
		next, err := fn(ctx, acc, val)
		if err != nil {
			return acc, err
		}
		acc = next
	}
}

// Find returns the first value for which fn reports true and stops pulling.
// found is false when the sequence is exhausted without a match.
func Find[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) (bool, error)) (val T, found bool, err error) {
	iter := p.Iter(ctx)
	defer iter.Close()
	for {
		v, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		match, err := fn(ctx, v)
		if err != nil {
			return val, false, err
		}
		if match {
			return v, true, nil
		}
	}
}

// Join renders each value with format.Format and writes sep before every
// one of them, the first included. An empty sequence yields "".
func Join[T any](ctx context.Context, p *Pipeline[T], sep string) (string, error) {
	iter := p.Iter(ctx)
	defer iter.Close()
	var b strings.Builder
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return b.String(), err
		}
		if !ok {
			return b.String(), nil
		}
		b.WriteString(sep)
		b.WriteString(format.Format(val))
	}
}

// ForEach calls fn for every value with its zero-based position.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(ctx context.Context, val T, idx int) error) error {
	iter := p.Iter(ctx)
	defer iter.Close()
	for idx := 0; ; idx++ {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, val, idx); err != nil {
			return err
		}
	}
}

// Count pulls every value and returns how many there were.
func Count[T any](ctx context.Context, p *Pipeline[T]) (int, error) {
	n := 0
	err := ForEach(ctx, p, func(context.Context, T, int) error {
		n++
		return nil
	})
	return n, err
}
