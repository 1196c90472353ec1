package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is a scheduled unit of work
type JobFunc func(ctx context.Context) error

type job struct {
	name      string
	schedule  string
	entryID   cron.EntryID
	fn        JobFunc
	mutex     sync.Mutex
	isRunning bool
}

// Scheduler runs named maintenance jobs on cron schedules. A job that is
// still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mutex sync.RWMutex
	jobs  map[string]*job
	ctx   context.Context
}

// NewScheduler creates a scheduler. Schedules accept an optional seconds
// field and descriptors such as "@every 1m".
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger: logger.Named("cron"),
		jobs:   make(map[string]*job),
		ctx:    context.Background(),
	}
}

// Add schedules fn under name
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already scheduled", name)
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	entryID, err := s.cron.AddFunc(schedule, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	j.entryID = entryID
	s.jobs[name] = j

	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// Start starts the scheduler. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	s.ctx = ctx
	s.mutex.Unlock()

	s.cron.Start()

	s.mutex.RLock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mutex.RUnlock()

	for _, j := range jobs {
		s.logger.Debug("Job armed",
			zap.String("job", j.name),
			zap.String("schedule", j.schedule),
			zap.Time("next_run", s.NextRun(j.name)))
	}
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs a job immediately, outside its schedule
func (s *Scheduler) RunNow(name string) bool {
	j, ok := s.job(name)
	if !ok {
		return false
	}
	return s.run(j)
}

// NextRun returns the next scheduled run time of a job
func (s *Scheduler) NextRun(name string) time.Time {
	j, ok := s.job(name)
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(j.entryID).Next
}

func (s *Scheduler) job(name string) (*job, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	j, ok := s.jobs[name]
	return j, ok
}

// run executes j unless it is already in progress and reports whether it ran
func (s *Scheduler) run(j *job) bool {
	j.mutex.Lock()
	if j.isRunning {
		j.mutex.Unlock()
		s.logger.Debug("Job already in progress, skipping", zap.String("job", j.name))
		return false
	}
	j.isRunning = true
	j.mutex.Unlock()

	defer func() {
		j.mutex.Lock()
		j.isRunning = false
		j.mutex.Unlock()
	}()

	s.mutex.RLock()
	ctx := s.ctx
	s.mutex.RUnlock()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		s.logger.Warn("Job failed", zap.String("job", j.name), zap.Error(err))
	} else {
		s.logger.Debug("Job completed", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
	}
	return true
}
