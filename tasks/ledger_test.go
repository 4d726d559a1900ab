package tasks

import (
	"context"
	stderrors "errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/logger"
	"github.com/kbukum/scriptkit/observability"
)

func newTestLedger(opts ...Option) *Ledger {
	opts = append([]Option{WithLogger(logger.Nop()), WithSettleDelay(5 * time.Millisecond)}, opts...)
	return New(opts...)
}

// gate returns a Future that settles with v when release is called.
func gate[T any](v T, err error) (*Future[T], func()) {
	f, settle := NewFuture[T]()
	return f, func() { settle(v, err) }
}

func TestRegister_ForwardsValue(t *testing.T) {
	l := newTestLedger()
	op, release := gate(42, nil)

	out := Register(l, op)
	if l.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", l.Len())
	}

	release()
	got, err := out.Await(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if l.Len() != 0 {
		t.Errorf("expected entry removed after settle, %d pending", l.Len())
	}
}

func TestRegister_ForwardsFailure(t *testing.T) {
	l := newTestLedger()
	boom := stderrors.New("boom")

	out := Register(l, Failed[int](boom))
	_, err := out.Await(context.Background())
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("expected failed entry removed, %d pending", l.Len())
	}
}

func TestRegister_IdentifiersIncrease(t *testing.T) {
	l := newTestLedger()
	var releases []func()
	for i := 0; i < 5; i++ {
		op, release := gate(i, nil)
		Register(l, op)
		releases = append(releases, release)
	}

	infos := l.Pending()
	if len(infos) != 5 {
		t.Fatalf("expected 5 pending, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i].ID <= infos[i-1].ID {
			t.Errorf("identifiers not increasing: %d after %d", infos[i].ID, infos[i-1].ID)
		}
	}

	for _, r := range releases {
		r()
	}
	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSpawn_RecoversPanic(t *testing.T) {
	l := newTestLedger()
	out := Spawn(context.Background(), l, func(context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := out.Await(context.Background())
	var pe *PanicError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "kaboom" {
		t.Errorf("expected panic value kaboom, got %v", pe.Value)
	}
}

func TestDrainAll_Empty(t *testing.T) {
	l := newTestLedger()
	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrainAll_WaitsForRegistered(t *testing.T) {
	l := newTestLedger()
	var settled atomic.Int32

	for i := 0; i < 3; i++ {
		d := time.Duration(10*(i+1)) * time.Millisecond
		Spawn(context.Background(), l, func(context.Context) (struct{}, error) {
			time.Sleep(d)
			settled.Add(1)
			return struct{}{}, nil
		})
	}

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := settled.Load(); got != 3 {
		t.Errorf("drain returned with %d/3 settled", got)
	}
	if l.Len() != 0 {
		t.Errorf("expected empty ledger, got %d", l.Len())
	}
}

func TestDrainAll_IgnoresFailures(t *testing.T) {
	l := newTestLedger()
	boom := stderrors.New("boom")

	out := Spawn(context.Background(), l, func(context.Context) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 0, boom
	})

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatalf("drain must not fail on tracked failure, got %v", err)
	}
	if _, err, ok := out.Result(); !ok || !stderrors.Is(err, boom) {
		t.Errorf("expected registrant to observe boom after drain, got ok=%v err=%v", ok, err)
	}
}

func TestDrainAll_TransitiveRegistration(t *testing.T) {
	l := newTestLedger()
	var childDone atomic.Bool

	Spawn(context.Background(), l, func(ctx context.Context) (struct{}, error) {
		time.Sleep(10 * time.Millisecond)
		Spawn(ctx, l, func(context.Context) (struct{}, error) {
			time.Sleep(30 * time.Millisecond)
			childDone.Store(true)
			return struct{}{}, nil
		})
		return struct{}{}, nil
	})

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !childDone.Load() {
		t.Error("drain returned before transitively registered operation settled")
	}
}

func TestDrainAll_WaitsForWorkRegisteredByAwaiter(t *testing.T) {
	for i := 0; i < 50; i++ {
		l := newTestLedger(WithSettleDelay(0))
		op, release := gate(struct{}{}, nil)
		out := Register(l, op)

		var childDone atomic.Bool
		go func() {
			if _, err := out.Await(context.Background()); err != nil {
				return
			}
			Spawn(context.Background(), l, func(context.Context) (struct{}, error) {
				time.Sleep(2 * time.Millisecond)
				childDone.Store(true)
				return struct{}{}, nil
			})
		}()

		go func() {
			time.Sleep(2 * time.Millisecond)
			release()
		}()

		if err := l.DrainAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !childDone.Load() {
			t.Fatalf("iteration %d: drain returned before the follow-up operation settled", i)
		}
	}
}

func TestDrainAll_RegistrationDuringDrain(t *testing.T) {
	l := newTestLedger()
	slow, releaseSlow := gate(struct{}{}, nil)
	Register(l, slow)

	late, releaseLate := gate(struct{}{}, nil)
	var lateReleased atomic.Bool

	go func() {
		// registers while the drainer is blocked on the first generation
		time.Sleep(20 * time.Millisecond)
		Register(l, late)
		releaseSlow()
		time.Sleep(20 * time.Millisecond)
		lateReleased.Store(true)
		releaseLate()
	}()

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !lateReleased.Load() {
		t.Error("drain ignored an operation registered while it was running")
	}
}

func TestDrainAll_SettleDelayCatchesSameTurnRegistration(t *testing.T) {
	l := newTestLedger(WithSettleDelay(30 * time.Millisecond))
	var done atomic.Bool

	go func() {
		time.Sleep(5 * time.Millisecond)
		Spawn(context.Background(), l, func(context.Context) (struct{}, error) {
			time.Sleep(10 * time.Millisecond)
			done.Store(true)
			return struct{}{}, nil
		})
	}()

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !done.Load() {
		t.Error("operation registered during the settle delay was not awaited")
	}
}

func TestDrainAll_ConcurrentSettlementLeavesNoStaleEntries(t *testing.T) {
	l := newTestLedger()
	const n = 200

	var wg sync.WaitGroup
	releases := make([]func(), n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op, release := gate(i, nil)
			Register(l, op)
			releases[i] = release
		}(i)
	}
	wg.Wait()

	rand.Shuffle(n, func(i, j int) { releases[i], releases[j] = releases[j], releases[i] })
	go func() {
		for _, r := range releases {
			r()
		}
	}()

	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 0 {
		t.Errorf("expected no stale entries, got %d", l.Len())
	}
}

func TestDrainAll_ConcurrentDrainers(t *testing.T) {
	l := newTestLedger()
	op, release := gate(struct{}{}, nil)
	Register(l, op)

	var released atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.DrainAll(context.Background()); err != nil {
				t.Error(err)
			}
			if !released.Load() {
				t.Error("a concurrent drainer returned before the operation settled")
			}
		}()
	}

	time.Sleep(40 * time.Millisecond)
	released.Store(true)
	release()
	wg.Wait()
}

func TestDrainAll_ContextCancelled(t *testing.T) {
	l := newTestLedger()
	never, _ := NewFuture[int]()
	Register(l, never)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.DrainAll(ctx)
	if !errors.Is(err, errors.ErrCodeDrainInterrupted) {
		t.Fatalf("expected DRAIN_INTERRUPTED, got %v", err)
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline cause, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected the stalled operation to stay tracked, got %d", l.Len())
	}
}

func TestLedger_Metrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := observability.NewRuntimeMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	l := newTestLedger(WithMetrics(m))
	Register(l, Resolved(1))
	Register(l, Failed[int](stderrors.New("x")))
	if err := l.DrainAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}

	if sums[observability.MetricTasksRegistered] != 2 {
		t.Errorf("expected 2 registrations, got %d", sums[observability.MetricTasksRegistered])
	}
	if sums[observability.MetricTasksFailed] != 1 {
		t.Errorf("expected 1 failure, got %d", sums[observability.MetricTasksFailed])
	}
	if sums[observability.MetricTasksPending] != 0 {
		t.Errorf("expected pending to return to 0, got %d", sums[observability.MetricTasksPending])
	}
}
