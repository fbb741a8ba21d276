package provider

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a reconciliation pass on a fixed cadence. Passes never
// overlap. Deactivate is lazy: the loop notices at its next tick and exits
// without running. Stop ends the loop at once.
type Scheduler struct {
	interval time.Duration
	pass     func()

	inFlight atomic.Bool
	passes   atomic.Int64

	mu      sync.Mutex
	active  bool
	running bool
	stop    chan struct{}
}

// MinInterval is the shortest cadence a Scheduler runs at.
const MinInterval = 10 * time.Millisecond

// NewScheduler creates an idle scheduler running pass every interval. Shorter
// intervals, zero and negative ones included, are raised to MinInterval.
func NewScheduler(interval time.Duration, pass func()) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Scheduler{interval: interval, pass: pass}
}

// Interval returns the cadence between passes.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Activate marks the scheduler active. If no loop is running it performs one
// pass immediately, on the calling goroutine, and starts the loop. It reports
// whether a new loop was started.
func (s *Scheduler) Activate() bool {
	s.mu.Lock()
	s.active = true
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	s.TryRun()
	go s.loop(stop)
	return true
}

// Deactivate marks the scheduler inactive.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Stop deactivates and ends the running loop without waiting for a pass in
// flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.running = false
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// Active reports whether passes may run.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Running reports whether a loop is scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Passes returns how many passes have completed.
func (s *Scheduler) Passes() int64 {
	return s.passes.Load()
}

// TryRun runs one pass unless another one is in flight. It reports whether
// the pass ran.
func (s *Scheduler) TryRun() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.inFlight.Store(false)
	s.pass()
	s.passes.Add(1)
	return true
}

func (s *Scheduler) loop(stop chan struct{}) {
	t := time.NewTimer(s.interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		s.mu.Lock()
		if s.stop != stop {
			// stopped and restarted while we slept; the new loop owns the schedule
			s.mu.Unlock()
			return
		}
		if !s.active {
			s.running = false
			s.stop = nil
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.TryRun()
		t.Reset(s.interval)
	}
}
