package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron schedules. Registering a job id that is
// already present replaces the earlier registration.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

// NewScheduler creates a stopped Scheduler. A job still running when its
// next tick arrives skips that tick.
func NewScheduler(opts ...cron.Option) *Scheduler {
	base := []cron.Option{cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger))}
	return &Scheduler{
		cron: cron.New(append(base, opts...)...),
		jobs: make(map[string]cron.EntryID),
	}
}

// Register schedules fn under jobID. spec accepts standard 5-field cron
// expressions and descriptors such as "@every 1h".
func (s *Scheduler) Register(jobID, spec string, fn func()) error {
	if jobID == "" {
		return fmt.Errorf("sweeper: job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("sweeper: schedule %s %q: %w", jobID, spec, err)
	}
	if old, ok := s.jobs[jobID]; ok {
		s.cron.Remove(old)
	}
	s.jobs[jobID] = id
	return nil
}

// Unregister removes a job. Unknown ids are ignored.
func (s *Scheduler) Unregister(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[jobID]; ok {
		s.cron.Remove(id)
		delete(s.jobs, jobID)
	}
}

// Registered reports whether jobID is scheduled.
func (s *Scheduler) Registered(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

// Next returns the next run time of jobID. It is zero until Start.
func (s *Scheduler) Next(jobID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobs[jobID]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish, or for ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sweeper: stop: %w", ctx.Err())
	}
}
