package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one periodic unit of work. The context carries a deadline and a
// logger tagged with the job name and run id.
type Job func(ctx context.Context) error

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, log zerolog.Logger, timeout time.Duration) *SchedulerService {
	if timeout <= 0 {
		timeout = time.Minute
	}
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		timeout: timeout,
	}
}

// Schedule registers job under a standard cron spec. Overlapping runs of the
// same job are skipped rather than queued.
func (s *SchedulerService) Schedule(name, spec string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.Run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", name, err)
	}
	return id, nil
}

// Run executes job once with the scheduler's timeout and logging.
func (s *SchedulerService) Run(name string, job Job) error {
	log := s.log.With().Str("job", name).Str("run_id", uuid.NewString()).Logger()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = log.WithContext(ctx)

	start := time.Now()
	err := job(ctx)
	took := time.Since(start)
	switch {
	case err == nil:
		log.Debug().Dur("took", took).Msg("job finished")
	case errors.Is(err, context.Canceled):
		log.Warn().Dur("took", took).Msg("job cancelled")
	default:
		log.Error().Err(err).Dur("took", took).Msg("job failed")
	}
	return err
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
