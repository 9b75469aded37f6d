// Package scheduler runs background jobs on fixed intervals using
// robfig/cron. Each run is a failure boundary: errors and panics are logged
// and recorded in the job's status, and the next run happens on schedule
// regardless. A run that is still going when its next tick arrives makes
// that tick a no-op.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single run when the scheduler has no timeout set.
const DefaultTimeout = 5 * time.Minute

// Schedule says when a job runs. It implements cron.Schedule.
type Schedule struct {
	interval time.Duration
}

// Every runs a job once per d. Unlike cron.Every, d is not rounded to
// whole seconds.
func Every(d time.Duration) Schedule {
	return Schedule{interval: d}
}

// Interval returns the period between runs.
func (s Schedule) Interval() time.Duration { return s.interval }

// Next implements cron.Schedule.
func (s Schedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// Job is one scheduled task.
type Job struct {
	Name        string
	Description string
	Schedule    Schedule
	Handler     func(ctx context.Context) error

	// RunOnStart runs the job once as soon as the scheduler starts.
	RunOnStart bool

	mu      sync.Mutex
	nextRun time.Time
	lastRun time.Time
	lastErr error
	runs    int
	fails   int
}

// Status returns a snapshot of the job state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := JobStatus{
		Name:        j.Name,
		Description: j.Description,
		Interval:    j.Schedule.interval.String(),
		NextRun:     j.nextRun,
		LastRun:     j.lastRun,
		Runs:        j.runs,
		Failures:    j.fails,
	}
	if j.lastErr != nil {
		st.LastError = j.lastErr.Error()
	}
	return st
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Interval    string    `json:"interval"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
}

// Scheduler owns the background jobs of the process.
type Scheduler struct {
	jobs    []*Job
	mu      sync.RWMutex
	timeout time.Duration
	log     zerolog.Logger

	cron    *cron.Cron
	chain   cron.Chain
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler. timeout bounds each run; zero means DefaultTimeout.
func New(timeout time.Duration, log zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}

	return &Scheduler{
		timeout: timeout,
		log:     log,
		cron:    cron.New(cron.WithLogger(cl)),
		chain:   cron.NewChain(cron.SkipIfStillRunning(cl)),
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job *Job) error {
	if job.Handler == nil {
		return fmt.Errorf("job %q has no handler", job.Name)
	}
	if job.Schedule.interval <= 0 {
		return fmt.Errorf("job %q has a non-positive interval", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %q registered after start", job.Name)
	}

	job.mu.Lock()
	job.nextRun = job.Schedule.Next(time.Now().UTC())
	job.mu.Unlock()
	s.jobs = append(s.jobs, job)

	s.log.Info().Str("job", job.Name).Dur("every", job.Schedule.interval).Msg("job registered")
	return nil
}

// Start schedules every job on the cron runner. Runs stop once ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	jobs := make([]*Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		wrapped := s.chain.Then(cron.FuncJob(func() {
			if ctx.Err() != nil {
				return
			}
			s.run(ctx, job)
		}))
		s.cron.Schedule(job.Schedule, wrapped)

		if job.RunOnStart {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				wrapped.Run()
			}()
		}
	}
	s.cron.Start()
	s.log.Info().Int("jobs", len(jobs)).Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Jobs returns the status of every job.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	jobs := make([]*Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.RUnlock()

	statuses := make([]JobStatus, len(jobs))
	for i, j := range jobs {
		statuses[i] = j.Status()
	}
	return statuses
}

// run executes one job invocation and records its outcome.
func (s *Scheduler) run(parent context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	log := s.log.With().Str("job", job.Name).Logger()
	log.Debug().Msg("job started")
	start := time.Now()

	err := safeCall(ctx, job.Handler)
	elapsed := time.Since(start)

	job.mu.Lock()
	job.lastRun = start
	job.lastErr = err
	job.runs++
	if err != nil {
		job.fails++
	}
	job.nextRun = job.Schedule.Next(time.Now().UTC())
	job.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
		return
	}
	log.Debug().Dur("elapsed", elapsed).Msg("job finished")
}

// safeCall recovers handler panics so they are counted as failures in the
// job status rather than only logged by the runner.
func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// cronLogger adapts zerolog to cron.Logger. Runner chatter goes to debug.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
