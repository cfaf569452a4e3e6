// Package scheduler runs jobs on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Schedule maps a job name to a standard five-field cron expression. An
// empty expression disables the job.
type Schedule map[string]string

// DefaultSchedule snapshots stock hourly, two minutes past the hour.
var DefaultSchedule = Schedule{"stock": "2 * * * *"}

// LoadFile reads a YAML schedule and layers it over DefaultSchedule. An
// empty path returns the defaults.
//
//	stock: "2 * * * *"
//	assembly: "*/30 * * * *"
//	acts: "0 6 * * *"
func LoadFile(path string) (Schedule, error) {
	out := Schedule{}
	for k, v := range DefaultSchedule {
		out[k] = v
	}
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheduler: read %s: %w", path, err)
	}
	var file Schedule
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("scheduler: decode %s: %w", path, err)
	}
	for k, v := range file {
		out[k] = v
	}
	return out, nil
}

// Validate checks that every scheduled job is known and every expression
// parses.
func (s Schedule) Validate(known []string) error {
	isKnown := make(map[string]bool, len(known))
	for _, k := range known {
		isKnown[k] = true
	}
	var errs []error
	for _, name := range s.jobs() {
		if !isKnown[name] {
			errs = append(errs, fmt.Errorf("scheduler: unknown job %q", name))
			continue
		}
		if _, err := cron.ParseStandard(s[name]); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// jobs returns the enabled job names in order.
func (s Schedule) jobs() []string {
	var names []string
	for name, expr := range s {
		if expr != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Runner executes a job by name.
type Runner interface {
	Run(ctx context.Context, name string) error
}

// Scheduler manages cron-based job execution. A job still running when its
// next tick arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

// New returns a Scheduler. timeout bounds a single job run; zero means no
// bound.
func New(runner Runner, logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers every enabled job of s. It fails on the first invalid
// expression.
func (s *Scheduler) Add(sched Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range sched.jobs() {
		expr := sched[name]
		if id, ok := s.entries[name]; ok {
			s.cron.Remove(id)
		}
		id, err := s.cron.AddFunc(expr, func() { s.trigger(name) })
		if err != nil {
			return fmt.Errorf("scheduler: %s %q: %w", name, expr, err)
		}
		s.entries[name] = id
		s.logger.Info("scheduled job", "job", name, "schedule", expr)
	}
	return nil
}

// Next returns the next activation of each scheduled job. It is only
// meaningful once the scheduler has started.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) trigger(name string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.runner.Run(ctx, name); err != nil {
		s.logger.Warn("scheduled run failed", "job", name, "err", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug("cron: "+msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "err", err)...)
}
