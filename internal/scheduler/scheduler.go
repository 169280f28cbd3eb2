package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pass is one periodic unit of scheduler work.
type Pass func(ctx context.Context) error

// Config holds the cadences for the registered passes. The alert hour is a
// local-server hour; everything else is a fixed interval.
type Config struct {
	AlertHour int
}

// Scheduler drives the bot's periodic passes on robfig/cron. Each entry is
// wrapped with SkipIfStillRunning so a slow pass never overlaps itself; the
// next tick simply finds the remaining work.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		logger: logger,
	}
}

// Register adds a named pass on the given cron expression.
func (s *Scheduler) Register(name, expr string, pass Pass) error {
	_, err := s.cron.AddFunc(expr, func() {
		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if err := pass(ctx); err != nil {
			s.logger.Error("scheduler pass failed", zap.String("pass", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register pass %s (%q): %w", name, expr, err)
	}
	s.logger.Info("scheduler pass registered", zap.String("pass", name), zap.String("schedule", expr))
	return nil
}

// RegisterAll wires the standard passes: reminders and confirmations every
// minute, overdue sweeps every half hour, session expiry every five
// minutes, and the low-attendance digest once a day.
func (s *Scheduler) RegisterAll(cfg Config, reminder, confirmation, overdue, sweep, alerts Pass) error {
	entries := []struct {
		name string
		expr string
		pass Pass
	}{
		{"reminder", "* * * * *", reminder},
		{"confirmation", "* * * * *", confirmation},
		{"overdue", "*/30 * * * *", overdue},
		{"session-sweep", "*/5 * * * *", sweep},
		{"low-attendance", fmt.Sprintf("0 %d * * *", cfg.AlertHour), alerts},
	}
	for _, e := range entries {
		if e.pass == nil {
			continue
		}
		if err := s.Register(e.name, e.expr, e.pass); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for in-flight passes to finish, bounded
// by the given timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out with passes still running")
	}
	s.logger.Info("scheduler stopped")
}
