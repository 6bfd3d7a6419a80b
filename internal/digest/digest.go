// Package digest periodically reminds owners of links waiting for moderation.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "linkbot/pkg/logx"
)

// Job sends one digest listing up to limit links.
type Job func(ctx context.Context, limit int) error

type Config struct {
	Enabled  bool
	Schedule string
	Timezone string
	Limit    int
	// Timeout bounds one run; zero means one minute.
	Timeout time.Duration
}

type Status struct {
	Enabled  bool      `json:"enabled"`
	Schedule string    `json:"schedule,omitempty"`
	Timezone string    `json:"timezone,omitempty"`
	Next     time.Time `json:"next,omitzero"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_err,omitempty"`
}

type Service struct {
	log logx.Logger
	job Job

	mu      sync.Mutex
	cfg     Config
	loc     *time.Location
	c       *cron.Cron
	entry   cron.EntryID
	ctx     context.Context
	lastRun time.Time
	lastErr error
}

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, job: job, log: log, loc: time.Local}
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Start begins triggering. Runs use ctx as their parent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("digest timezone: %w", err)
	}
	s.loc = loc
	s.c = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if err := s.scheduleLocked(); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("digest started", logx.Bool("enabled", s.cfg.Enabled), logx.String("schedule", s.cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) scheduleLocked() error {
	if s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}
	if !s.cfg.Enabled {
		return nil
	}
	sched, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	s.entry = s.c.Schedule(sched, cron.FuncJob(s.run))
	return nil
}

// Apply switches to cfg. An invalid cfg is rejected and the running schedule
// is kept.
func (s *Service) Apply(cfg Config) error {
	if cfg.Enabled {
		if _, err := ParseSchedule(cfg.Schedule); err != nil {
			return err
		}
	}
	if _, err := loadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("digest timezone: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	if strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone) {
		// A run in flight finishes on the old cron.
		s.c.Stop()
		s.c, s.entry = nil, 0
		return s.startLocked()
	}
	if old.Enabled == cfg.Enabled && old.Schedule == cfg.Schedule {
		return nil
	}
	s.log.Info("digest schedule updated", logx.Bool("enabled", cfg.Enabled), logx.String("schedule", cfg.Schedule))
	return s.scheduleLocked()
}

// Stop waits for a running digest, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c, s.entry = nil, 0
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("digest stopped")
}

// RunNow sends a digest immediately, outside the schedule.
func (s *Service) RunNow(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.runWith(ctx, cfg)
}

func (s *Service) run() {
	s.mu.Lock()
	cfg, parent := s.cfg, s.ctx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	if err := s.runWith(parent, cfg); err != nil {
		s.log.Warn("digest failed", logx.Err(err))
	}
}

func (s *Service) runWith(parent context.Context, cfg Config) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := s.job(ctx, cfg.Limit)

	s.mu.Lock()
	s.lastRun, s.lastErr = start, err
	s.mu.Unlock()
	s.log.Debug("digest run", logx.Duration("took", time.Since(start)), logx.Bool("ok", err == nil))
	return err
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Enabled:  s.cfg.Enabled,
		Schedule: s.cfg.Schedule,
		Timezone: s.loc.String(),
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		st.LastErr = s.lastErr.Error()
	}
	if s.c != nil && s.entry != 0 {
		st.Next = s.c.Entry(s.entry).Next
	}
	return st
}

// cronLogger routes cron's internal logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
