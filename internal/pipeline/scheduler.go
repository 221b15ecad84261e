package pipeline

import (
	"context"
	"sync"
)

// Scheduler serializes builds. Triggers that arrive while a build runs
// collapse into exactly one follow-up build.
type Scheduler struct {
	run     func(context.Context)
	pending chan struct{}

	mu      sync.Mutex
	running bool
}

// NewScheduler returns a scheduler calling run for every build.
func NewScheduler(run func(context.Context)) *Scheduler {
	return &Scheduler{run: run, pending: make(chan struct{}, 1)}
}

// Trigger requests a build. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Running reports whether a build is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes requested builds one at a time until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.pending:
		}
		s.mu.Lock()
		s.running = true
		s.mu.Unlock()

		s.run(ctx)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}
}
