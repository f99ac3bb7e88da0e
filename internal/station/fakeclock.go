package station

import (
	"sync"
	"time"
)

// FakeClock is a manually-advanced Clock for tests. Sleep and After return
// as soon as Advance has accumulated at least the requested duration since
// the call was made; tests call Advance from a separate goroutine (or
// pre-arm it) to unblock a waiting supervisor without real wall-clock
// delay.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
	tickers []*fakeTicker
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFakeClock returns a FakeClock starting at an arbitrary fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Advance moves the clock forward by d, firing any waiter whose deadline
// has passed and any ticker whose next tick is now due (possibly more than
// once, if d spans several periods).
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !f.now.Before(w.deadline) {
			w.ch <- f.now
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining

	for _, t := range f.tickers {
		t.mu.Lock()
		for !t.stopped && !f.now.Before(t.next) {
			select {
			case t.ch <- f.now:
			default:
			}
			t.next = t.next.Add(t.period)
		}
		t.mu.Unlock()
	}
}

func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	f.waiters = append(f.waiters, fakeWaiter{deadline: f.now.Add(d), ch: ch})
	return ch
}

// Sleep blocks until Advance covers d.
func (f *FakeClock) Sleep(d time.Duration) {
	<-f.After(d)
}

// NewTicker returns a Ticker that fires on f's own simulated timeline: each
// call to Advance that crosses a period boundary sends on its channel.
func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, ch: make(chan time.Time, 1), next: f.now.Add(d)}
	f.tickers = append(f.tickers, t)
	return t
}

// Now returns the clock's current simulated instant.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NumWaiters reports how many outstanding After/Sleep calls are currently
// blocked, letting a test spin until a goroutine under test has actually
// reached its wait point before calling Advance.
func (f *FakeClock) NumWaiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

type fakeTicker struct {
	period  time.Duration
	next    time.Time
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}
