// README: Cron scheduler for background maintenance jobs.
package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runnable is a job triggered by the scheduler.
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

const defaultJobTimeout = 2 * time.Minute

// NewScheduler accepts five or six field specs and descriptors like "@daily".
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger,
		timeout: defaultJobTimeout,
	}
}

func (s *Scheduler) Register(spec string, r Runnable) (cron.EntryID, error) {
	if r == nil {
		return 0, errors.New("scheduler: runnable is required")
	}
	if spec == "" {
		return 0, errors.New("scheduler: spec is required")
	}
	id, err := s.cron.AddFunc(spec, s.wrap(r))
	if err != nil {
		return 0, err
	}
	s.logger.Info("job registered", "job", r.Name(), "spec", spec)
	return id, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return context.Background()
	}
	s.started = false
	return s.cron.Stop()
}

func (s *Scheduler) wrap(r Runnable) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := r.Run(ctx); err != nil {
			s.logger.Error("job failed", "job", r.Name(), "error", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Debug("job completed", "job", r.Name(), "elapsed", time.Since(start))
	}
}
