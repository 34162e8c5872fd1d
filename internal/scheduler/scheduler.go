// Package scheduler repeats a report run on a fixed interval.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Status describes the last completed run.
type Status struct {
	Runs    int
	LastRun time.Time
	LastErr error
}

// Scheduler runs a Job immediately and then on every tick.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *log.Logger

	statusMu sync.RWMutex
	status   Status

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(interval time.Duration, job Job, logger *log.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run starts the loop in the background. It ends on Stop or when ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Printf("Scheduler starting, interval %s", s.interval)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop waits for the loop to end. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.logger.Println("Scheduler stopped")
	})
}

// Status returns a snapshot of the last run.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	err := s.job(ctx)
	if err != nil {
		s.logger.Printf("Scheduled run failed: %v", err)
	}
	s.statusMu.Lock()
	s.status.Runs++
	s.status.LastRun = time.Now()
	s.status.LastErr = err
	s.statusMu.Unlock()
}
