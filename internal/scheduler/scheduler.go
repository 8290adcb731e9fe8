package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule runs once on weekdays after the US close (seconds field first).
const DefaultSchedule = "0 30 21 * * 1-5"

// ErrRunInProgress is returned by RunNow while another run is executing.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Runner is the job the scheduler triggers.
type Runner interface {
	Run(ctx context.Context, symbols []string) (*model.RunSummary, error)
}

// Scheduler triggers pipeline runs on a cron schedule.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  Runner
	Symbols []string
	Ctx     context.Context

	running sync.Mutex
	mu      sync.Mutex
	last    *model.RunSummary
	log     zerolog.Logger
}

// NewScheduler creates a new Scheduler. Overlapping runs are skipped.
func NewScheduler(ctx context.Context, runner Runner, symbols []string) *Scheduler {
	log := logger.Component("scheduler")
	cronLog := cron.PrintfLogger(&log)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Runner:  runner,
		Symbols: symbols,
		Ctx:     ctx,
		log:     log,
	}
}

// Register adds the pipeline run at spec (DefaultSchedule if empty).
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.Cron.AddFunc(spec, s.runTask); err != nil {
		return fmt.Errorf("register pipeline task %q: %w", spec, err)
	}
	s.log.Info().Str("schedule", spec).Msg("pipeline task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes the pipeline immediately (manual trigger / run on start).
// It returns ErrRunInProgress if a run is already executing.
func (s *Scheduler) RunNow() (*model.RunSummary, error) {
	return s.run()
}

// LastSummary returns the summary of the most recent successful run, or nil.
func (s *Scheduler) LastSummary() *model.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) runTask() {
	if _, err := s.run(); errors.Is(err, ErrRunInProgress) {
		s.log.Warn().Msg("previous run still in progress, skipping")
	} else if err != nil {
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
}

func (s *Scheduler) run() (*model.RunSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	s.log.Info().Msg("running pipeline")
	summary, err := s.Runner.Run(s.Ctx, s.Symbols)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()
	return summary, nil
}
