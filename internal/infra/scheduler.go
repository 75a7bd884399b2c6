package infra

import (
	"context"
	"log"
	"sync"
	"time"

	"perpguard/internal/service"
	"perpguard/internal/usecase"
)

// CycleRunner runs one trading cycle and reports the cadence to the next
type CycleRunner interface {
	RunCycle(ctx context.Context) (*usecase.CycleReport, error)
}

// CycleScheduler drives the trading loop on an adaptive timer. Each cycle
// reports the interval to the next one, so the cadence tightens in
// volatile markets and relaxes in quiet ones. Rescheduling is
// unconditional: a failed or panicking cycle still arms the next timer,
// falling back to the default interval.
type CycleScheduler struct {
	orchestrator CycleRunner
	refresh      func(ctx context.Context) // pre-cycle forecast warmup, may be nil

	defaultIntervalMin int
	cycleTimeout       time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	done    chan struct{}
}

// NewCycleScheduler creates a new CycleScheduler
func NewCycleScheduler(orchestrator CycleRunner, refresh func(ctx context.Context), defaultIntervalMin int, cycleTimeout time.Duration) *CycleScheduler {
	return &CycleScheduler{
		orchestrator:       orchestrator,
		refresh:            refresh,
		defaultIntervalMin: defaultIntervalMin,
		cycleTimeout:       cycleTimeout,
		done:               make(chan struct{}),
	}
}

// Start runs the first cycle immediately and keeps rescheduling until
// the context is canceled or Stop is called.
func (s *CycleScheduler) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	go s.run(ctx)
	log.Printf("[SCHED] Adaptive cycle scheduler started (default %dm)", s.defaultIntervalMin)
}

// Stop cancels any pending timer. Idempotent.
func (s *CycleScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	log.Println("[SCHED] Scheduler stopped")
}

// TriggerNow runs one cycle out of band without disturbing the timer.
// Overlap with a scheduled cycle is handled by the orchestrator's own
// mutual exclusion.
func (s *CycleScheduler) TriggerNow(ctx context.Context) (*usecase.CycleReport, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()
	return s.orchestrator.RunCycle(cctx)
}

func (s *CycleScheduler) run(ctx context.Context) {
	intervalMin := s.runCycle(ctx)
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.timer = time.NewTimer(time.Duration(intervalMin) * time.Minute)
		s.mu.Unlock()

		if delay := service.ForecastRefreshDelay(intervalMin); delay > 0 && s.refresh != nil {
			time.AfterFunc(delay, func() {
				select {
				case <-s.done:
					return
				default:
				}
				s.refresh(ctx)
			})
		}

		select {
		case <-s.done:
			return
		case <-s.timer.C:
		}

		intervalMin = s.runCycle(ctx)
	}
}

// runCycle executes one cycle under a deadline and always returns the
// interval to the next one.
func (s *CycleScheduler) runCycle(ctx context.Context) (intervalMin int) {
	intervalMin = s.defaultIntervalMin

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERR] Scheduler: cycle panicked: %v", r)
		}
		intervalMin = service.ClampInterval(intervalMin)
		log.Printf("[SCHED] Next cycle in %dm", intervalMin)
	}()

	cctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	report, err := s.orchestrator.RunCycle(cctx)
	if err != nil {
		log.Printf("[ERR] Scheduler: cycle failed: %v", err)
	}
	if report != nil && report.NextIntervalMin > 0 {
		intervalMin = report.NextIntervalMin
	}
	return intervalMin
}
