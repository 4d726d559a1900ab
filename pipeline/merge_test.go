package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apperrors "github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/observability"
)

func TestMerge_TwoFiniteSources(t *testing.T) {
	got, err := Collect(context.Background(), Merge(
		SliceSource([]int{1, 2, 3}),
		SliceSource([]int{10, 20}),
	))
	if err != nil {
		t.Fatal(err)
	}

	sorted := append([]int(nil), got...)
	sort.Ints(sorted)
	if want := []int{1, 2, 3, 10, 20}; !intSliceEqual(sorted, want) {
		t.Fatalf("got %v, want a permutation of %v", got, want)
	}
	assertOrdered(t, got, 1, 2, 3)
	assertOrdered(t, got, 10, 20)
}

func TestMerge_ManySourcesPreservePerSourceOrder(t *testing.T) {
	const k = 6
	var sources []*Source[int]
	var iters []*trackedIter
	total := 0
	for i := 0; i < k; i++ {
		n := 1 + rand.Intn(8)
		items := make([]int, n)
		for j := range items {
			items[j] = i*100 + j
		}
		total += n
		it := newTrackedIter(items...)
		it.delay = time.Duration(rand.Intn(3)) * time.Millisecond
		iters = append(iters, it)
		sources = append(sources, IterSource[int](it))
	}

	got, err := Collect(context.Background(), Merge(sources...))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != total {
		t.Fatalf("expected %d values, got %d", total, len(got))
	}

	seen := map[int]bool{}
	for _, v := range got {
		if seen[v] {
			t.Errorf("value %d yielded twice", v)
		}
		seen[v] = true
	}
	for i, it := range iters {
		assertOrdered(t, got, it.items...)
		if it.closes() != 1 {
			t.Errorf("source %d: expected one release on exhaustion, got %d", i, it.closes())
		}
	}
}

func TestMerge_NoSources(t *testing.T) {
	got, err := Collect(context.Background(), Merge[int]())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestMerge_EarlyStopCancelsLiveSources(t *testing.T) {
	fast := newTrackedIter(1, 2, 3, 4)
	stalled := newTrackedIter(100)
	stalled.gate = make(chan struct{})

	val, found, err := Find(context.Background(),
		Merge(IterSource[int](fast), IterSource[int](stalled)),
		func(_ context.Context, n int) (bool, error) { return n == 2, nil },
	)
	if err != nil {
		t.Fatal(err)
	}
	if !found || val != 2 {
		t.Fatalf("got (%d, %v), want (2, true)", val, found)
	}

	waitClosed(t, fast)
	waitClosed(t, stalled)
}

func TestMerge_ExhaustedSourceNotCancelled(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observability.NewRuntimeMetrics(
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	base := observability.WithRunContext(context.Background(),
		observability.NewRunContext("run", "merge", metrics))

	short := newTrackedIter(1)
	stalled := newTrackedIter()
	stalled.gate = make(chan struct{})
	m := NewMergeIter(IterSource[int](short), IterSource[int](stalled))

	v, ok, err := m.Next(base)
	if err != nil || !ok || v != 1 {
		t.Fatalf("got (%d, %v, %v), want (1, true, nil)", v, ok, err)
	}

	ctx, cancel := context.WithTimeout(base, 30*time.Millisecond)
	defer cancel()
	if _, _, err := m.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if m.Live() != 1 {
		t.Errorf("expected one live source, got %d", m.Live())
	}

	waitClosed(t, short)
	waitClosed(t, stalled)
	_ = m.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var cancelled int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != observability.MetricSourcesCancelled {
				continue
			}
			for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
				cancelled += dp.Value
			}
		}
	}
	if cancelled != 1 {
		t.Errorf("expected exactly one cancelled source, got %d", cancelled)
	}
}

func TestMerge_CloseBeforeStart(t *testing.T) {
	a, b := newTrackedIter(1), newTrackedIter(2)
	m := NewMergeIter(IterSource[int](a), IterSource[int](b))
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	waitClosed(t, a)
	waitClosed(t, b)

	if _, ok, err := m.Next(context.Background()); ok || err != nil {
		t.Errorf("expected closed merge to be exhausted, got ok=%v err=%v", ok, err)
	}
}

func TestMerge_SourceFailureCancelsOthers(t *testing.T) {
	boom := errors.New("disk gone")
	failing := newTrackedIter()
	failing.failWith = boom
	stalled := newTrackedIter()
	stalled.gate = make(chan struct{})

	_, err := Collect(context.Background(), Merge(IterSource[int](failing), IterSource[int](stalled)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error to propagate, got %v", err)
	}
	if !apperrors.Is(err, apperrors.ErrCodeSourceFailed) {
		t.Errorf("expected SOURCE_FAILED, got %v", err)
	}
	appErr, _ := apperrors.As(err)
	if appErr.Details["source_index"] != 0 {
		t.Errorf("expected failing source index 0, got %v", appErr.Details["source_index"])
	}

	waitClosed(t, failing)
	waitClosed(t, stalled)
}

func TestMerge_SourceBoundTwicePanics(t *testing.T) {
	s := SliceSource([]int{1})
	_ = Merge(s)

	defer func() {
		if recover() == nil {
			t.Error("expected binding a source to a second merge to panic")
		}
	}()
	_ = Merge(s)
}

func TestCombine(t *testing.T) {
	p := FromSlice([]int{1, 2, 3}).Combine(SliceSource([]int{10, 20}))
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 values, got %v", got)
	}
	assertOrdered(t, got, 1, 2, 3)
	assertOrdered(t, got, 10, 20)
}

func TestMerge_FilterEndToEnd(t *testing.T) {
	p := Merge(SliceSource([]int{1, 2}), SliceSource([]int{3, 4})).Filter(isEven)
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(got)
	if want := []int{2, 4}; !intSliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
