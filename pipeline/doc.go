// Package pipeline provides lazy, pull-based sequences and a completion-order
// merge of several sequences with cancellation of the ones that are never
// fully consumed.
//
// Pipelines are lazy: no work happens until a terminal pulls values. Each
// stage pulls from the previous one on demand. Every stage and terminal takes
// ownership of the pipeline it is given, so a pipeline is used exactly once:
//
//	evens := pipeline.FromSlice([]int{1, 2, 3, 4}).
//	    Filter(func(_ context.Context, n int) (bool, error) { return n%2 == 0, nil })
//	got, err := pipeline.Collect(ctx, evens) // [2 4]
//
// # Sources and merging
//
// A Source wraps a slice (SliceSource) or an Iterator (IterSource) behind a
// pollable interface with a one-shot Cancel. Merge races one poll per source
// and yields values as they become ready:
//
//	merged := pipeline.Merge(
//	    pipeline.IterSource(pipeline.Lines(fileA)),
//	    pipeline.IterSource(pipeline.Lines(fileB)),
//	)
//	line, found, err := pipeline.Find(ctx, merged, isHeader)
//
// When consumption stops early (Find, an error, a cancelled context) every
// source that is not exhausted is cancelled once. Cancellation is a signal:
// the merge does not wait for a source to release its resources.
//
// # Stages
//
//   - Filter, Tap: methods on Pipeline
//   - Map, FlatMap, Flatten, Concat: functions, since they change the element type
//     or take several pipelines
//   - Combine: fan-in of the current pipeline with more sources
//
// # Terminals
//
// Collect, Fold, Find, Join, ForEach and Count. All of them close the
// underlying iterator before returning.
package pipeline
