package alerts

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	internalsettings "github.com/upsurgeiq/creditwatch/internal/settings"

	log "github.com/sirupsen/logrus"
)

const (
	defaultCheckInterval = time.Hour
	defaultStartupDelay  = 30 * time.Second
)

// Status is a point-in-time snapshot of the scheduler for the management API.
type Status struct {
	Running      bool       `json:"running"`
	CycleActive  bool       `json:"cycle_active"`
	Interval     string     `json:"interval"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	NextCycleAt  *time.Time `json:"next_cycle_at,omitempty"`
	CyclesRun    uint64     `json:"cycles_run"`
	LastCycleErr string     `json:"last_cycle_error,omitempty"`
}

// Scheduler drives the checker on an interval aligned to the top of the
// hour. Start and Stop are idempotent; TriggerNow shares the re-entrancy
// guard with the timer loop so at most one cycle runs at a time.
type Scheduler struct {
	checker *Checker

	mu          sync.Mutex
	cancel      context.CancelFunc
	lastCycleAt *time.Time
	nextCycleAt *time.Time
	lastErr     string
	cyclesRun   uint64

	cycleActive atomic.Bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler(checker *Checker) *Scheduler {
	if checker == nil {
		return nil
	}
	return &Scheduler{checker: checker}
}

// Start launches the check loop in a background goroutine. The first cycle
// runs after a short startup delay so process boot is never blocked on a
// full aggregation pass.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)
	log.Infof("alert scheduler started (startup delay=%s)", s.startupDelay())
}

// Stop halts the loop. An in-flight cycle finishes; no new cycle starts.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.setNextCycleLocked(nil)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		log.Info("alert scheduler stopped")
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status returns a snapshot for the management API.
func (s *Scheduler) Status() Status {
	if s == nil {
		return Status{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		Running:      s.cancel != nil,
		CycleActive:  s.cycleActive.Load(),
		Interval:     s.interval().String(),
		CyclesRun:    s.cyclesRun,
		LastCycleErr: s.lastErr,
	}
	if s.lastCycleAt != nil {
		t := *s.lastCycleAt
		status.LastCycleAt = &t
	}
	if s.nextCycleAt != nil {
		t := *s.nextCycleAt
		status.NextCycleAt = &t
	}
	return status
}

// TriggerNow runs one cycle immediately, outside the timer. It returns false
// without running when a cycle is already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context) (bool, error) {
	if s == nil {
		return false, nil
	}
	if !s.cycleActive.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.cycleActive.Store(false)
	// Same rule as the timer loop: once a cycle starts it finishes, even if
	// the triggering request goes away.
	return true, s.finishCycle(s.checker.RunCycle(context.WithoutCancel(ctx)))
}

func (s *Scheduler) run(ctx context.Context) {
	if !s.sleep(ctx, s.startupDelay()) {
		return
	}
	// Stop only prevents future cycles. The cycle body runs detached so
	// cancellation mid-pipeline cannot leave a breach notified but
	// unrecorded.
	cycleCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		s.cycle(cycleCtx)

		wait := time.Until(nextAligned(time.Now(), s.interval()))
		s.mu.Lock()
		next := time.Now().Add(wait)
		s.setNextCycleLocked(&next)
		s.mu.Unlock()

		if !s.sleep(ctx, wait) {
			return
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if !s.cycleActive.CompareAndSwap(false, true) {
		log.Warn("alert scheduler: previous cycle still running, skipping tick")
		return
	}
	defer s.cycleActive.Store(false)
	if errCycle := s.finishCycle(s.checker.RunCycle(ctx)); errCycle != nil {
		log.WithError(errCycle).Error("alert scheduler: cycle failed")
	}
}

func (s *Scheduler) finishCycle(errCycle error) error {
	now := time.Now()
	s.mu.Lock()
	s.lastCycleAt = &now
	s.cyclesRun++
	if errCycle != nil {
		s.lastErr = errCycle.Error()
	} else {
		s.lastErr = ""
	}
	s.mu.Unlock()
	return errCycle
}

func (s *Scheduler) setNextCycleLocked(next *time.Time) {
	s.nextCycleAt = next
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// duration elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) interval() time.Duration {
	seconds := internalsettings.IntValue(internalsettings.AlertCheckIntervalSecondsKey, 0)
	if seconds <= 0 {
		return defaultCheckInterval
	}
	return time.Duration(seconds) * time.Second
}

func (s *Scheduler) startupDelay() time.Duration {
	seconds := internalsettings.IntValue(internalsettings.AlertStartupDelaySecondsKey, -1)
	if seconds < 0 {
		return defaultStartupDelay
	}
	return time.Duration(seconds) * time.Second
}

// nextAligned returns the next tick boundary after now, aligned to interval
// from the top of the hour. An hourly interval ticks at :00 regardless of
// when the process started.
func nextAligned(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	anchor := now.Truncate(time.Hour)
	next := anchor
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}
