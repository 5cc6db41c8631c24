package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepConfig controls the periodic background sweeps.
type SweepConfig struct {
	DecaySchedule   string  `json:"decay_schedule"`   // cron expression, default hourly
	CleanupSchedule string  `json:"cleanup_schedule"` // cron expression, default daily
	GraceMultiplier float64 `json:"grace_multiplier"`
	SweepTimeoutMS  int     `json:"sweep_timeout_ms"`
}

func (c SweepConfig) timeout() time.Duration {
	if c.SweepTimeoutMS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SweepTimeoutMS) * time.Millisecond
}

// Sweeper runs decay and cleanup as scheduled background jobs, off the
// request path.
type Sweeper struct {
	mgr    *Manager
	cron   *cron.Cron
	logger *zap.Logger
}

// NewSweeper schedules decay and cleanup on the manager. Empty
// schedules fall back to hourly decay and daily cleanup.
func NewSweeper(mgr *Manager, cfg SweepConfig, logger *zap.Logger) (*Sweeper, error) {
	decaySpec := cfg.DecaySchedule
	if decaySpec == "" {
		decaySpec = "@hourly"
	}
	cleanupSpec := cfg.CleanupSchedule
	if cleanupSpec == "" {
		cleanupSpec = "@daily"
	}

	c := cron.New()
	s := &Sweeper{mgr: mgr, cron: c, logger: logger}

	if _, err := c.AddFunc(decaySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout())
		defer cancel()
		if _, _, err := mgr.Decay(ctx, false); err != nil {
			logger.Error("scheduled decay failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule decay %q: %w", decaySpec, err)
	}

	if _, err := c.AddFunc(cleanupSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout())
		defer cancel()
		if _, err := mgr.Cleanup(ctx, cfg.GraceMultiplier, false); err != nil {
			logger.Error("scheduled cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", cleanupSpec, err)
	}

	return s, nil
}

// Start begins running the scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("lifecycle sweeper started")
}

// Stop halts scheduling and waits for any running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("lifecycle sweeper stopped")
}
