package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/p2prate/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeComputer struct {
	calls atomic.Int32
	gate  chan struct{}

	mu    sync.Mutex
	err   error
	final decimal.Decimal
}

func newFakeComputer(final int64) *fakeComputer {
	return &fakeComputer{final: decimal.NewFromInt(final)}
}

func (f *fakeComputer) set(final int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.final = decimal.NewFromInt(final)
	f.err = err
}

func (f *fakeComputer) Compute(ctx context.Context) (*domain.Breakdown, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	return &domain.Breakdown{Snapshot: domain.RateSnapshot{
		Timestamp:     time.Now().UTC(),
		SourceAverage: decimal.NewFromInt(4000),
		TargetAverage: decimal.NewFromInt(40),
		RealRate:      decimal.NewFromInt(100),
		FinalRate:     f.final,
	}}, nil
}

type fakeTimer struct {
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type timerRecorder struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (r *timerRecorder) afterFunc(_ time.Duration, f func()) stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTimer{fire: f}
	r.timers = append(r.timers, t)
	return t
}

func (r *timerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *timerRecorder) last() *fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timers[len(r.timers)-1]
}
