package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purger deletes records created before the cutoff and reports how many
// were removed.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig holds configuration for the journal retention trigger
type RetentionConfig struct {
	Enabled bool
	// Schedule is a "minute hour * * *" expression
	Schedule      string
	RetentionDays int
	CheckInterval time.Duration
}

// DefaultRetentionConfig runs daily at 03:00 and keeps 90 days.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Enabled:       true,
		Schedule:      "0 3 * * *",
		RetentionDays: 90,
		CheckInterval: time.Minute,
	}
}

// ParseDailySchedule extracts hour and minute from "minute hour * * *".
// An empty expression yields 03:00.
func ParseDailySchedule(expr string) (hour, minute int, err error) {
	hour, minute = 3, 0
	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return hour, minute, nil
	}
	if parts[0] != "*" {
		if minute, err = strconv.Atoi(parts[0]); err != nil {
			return 0, 0, fmt.Errorf("%w: minute %q", ErrInvalidConfig, parts[0])
		}
	}
	if parts[1] != "*" {
		if hour, err = strconv.Atoi(parts[1]); err != nil {
			return 0, 0, fmt.Errorf("%w: hour %q", ErrInvalidConfig, parts[1])
		}
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}
	return hour, minute, nil
}

// RetentionTrigger purges old journal records once a day.
type RetentionTrigger struct {
	config       RetentionConfig
	hour, minute int
	purger       Purger
	logger       *zap.Logger
	now          func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewRetentionTrigger creates a retention trigger.
func NewRetentionTrigger(config RetentionConfig, purger Purger, logger *zap.Logger) (*RetentionTrigger, error) {
	hour, minute, err := ParseDailySchedule(config.Schedule)
	if err != nil {
		return nil, err
	}
	if config.RetentionDays <= 0 {
		return nil, fmt.Errorf("%w: retention days must be positive", ErrInvalidConfig)
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionTrigger{
		config: config,
		hour:   hour,
		minute: minute,
		purger: purger,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (r *RetentionTrigger) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning || !r.config.Enabled {
		return nil
	}
	r.isRunning = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.runLoop(ctx)

	r.logger.Info("Journal retention trigger started",
		zap.Int("hour", r.hour),
		zap.Int("minute", r.minute),
		zap.Int("retention_days", r.config.RetentionDays),
	)
	return nil
}

// Stop stops the trigger loop
func (r *RetentionTrigger) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RetentionTrigger) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkAndPurge(ctx)
		}
	}
}

// checkAndPurge purges at most once per calendar day, at the scheduled minute.
func (r *RetentionTrigger) checkAndPurge(ctx context.Context) bool {
	now := r.now()
	today := now.Format("2006-01-02")

	r.mu.Lock()
	if r.lastRunDate == today || now.Hour() != r.hour || now.Minute() != r.minute {
		r.mu.Unlock()
		return false
	}
	r.lastRunDate = today
	r.mu.Unlock()

	_, _ = r.RunOnce(ctx)
	return true
}

// RunOnce purges records older than the retention window.
func (r *RetentionTrigger) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().AddDate(0, 0, -r.config.RetentionDays)
	n, err := r.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("Journal purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	r.logger.Info("Journal purged", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n, nil
}
