package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

// trackedIter is an Iterator over ints that counts pulls and closes. A
// non-nil gate makes every Next wait for a receive (or ctx) first.
type trackedIter struct {
	mu       sync.Mutex
	items    []int
	idx      int
	nPulled  int
	nClosed  int
	closeErr error
	failWith error
	delay    time.Duration
	gate     chan struct{}
	closedCh chan struct{}
}

func newTrackedIter(items ...int) *trackedIter {
	return &trackedIter{items: items, closedCh: make(chan struct{})}
}

func (it *trackedIter) Next(ctx context.Context) (int, bool, error) {
	if it.gate != nil {
		select {
		case <-it.gate:
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
	if it.delay > 0 {
		select {
		case <-time.After(it.delay):
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}

	it.mu.Lock()
	defer it.mu.Unlock()
	it.nPulled++
	if it.idx >= len(it.items) {
		return 0, false, it.failWith
	}
	v := it.items[it.idx]
	it.idx++
	return v, true, nil
}

func (it *trackedIter) Close() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.nClosed++
	if it.nClosed == 1 {
		close(it.closedCh)
	}
	return it.closeErr
}

func (it *trackedIter) pulled() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.nPulled
}

func (it *trackedIter) closes() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.nClosed
}

// waitClosed waits for the first Close, then gives a duplicate Close a
// moment to show up.
func waitClosed(t *testing.T, it *trackedIter) {
	t.Helper()
	select {
	case <-it.closedCh:
	case <-time.After(time.Second):
		t.Fatal("iterator was never closed")
	}
	time.Sleep(10 * time.Millisecond)
	if n := it.closes(); n != 1 {
		t.Errorf("expected exactly one Close, got %d", n)
	}
}

// assertOrdered checks that want appears in got as a subsequence.
func assertOrdered(t *testing.T, got []int, want ...int) {
	t.Helper()
	i := 0
	for _, v := range got {
		if i < len(want) && v == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Errorf("expected %v in order within %v", want, got)
	}
}
