package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

var recoveryLog = logger.For("recovery")

// RecoveryAction is the operation a recovery attempt runs once its
// backoff delay has elapsed.
type RecoveryAction func(ctx context.Context) error

// RecoveryController is a cancellable exponential-backoff retry primitive.
// It knows nothing about what it recovers; callers pass the action.
//
//	idle -> recovering -> idle (success)
//	                   -> failed (retries remain)
//	                   -> exhausted (budget spent, manual reset required)
type RecoveryController struct {
	config  domain.RecoverySettings
	metrics driven.MetricsRecorder

	mu     sync.Mutex
	state  domain.RecoveryState
	cancel context.CancelFunc
	gen    uint64
	closed bool
}

// NewRecoveryController creates a controller. metrics may be nil.
func NewRecoveryController(config domain.RecoverySettings, metrics driven.MetricsRecorder) *RecoveryController {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &RecoveryController{
		config:  config,
		metrics: metrics,
		state: domain.RecoveryState{
			Status:   domain.RecoveryIdle,
			CanRetry: true,
		},
	}
}

// NextDelay returns min(InitialDelay * BackoffMultiplier^attempts, MaxDelay).
func (c *RecoveryController) NextDelay(attempts int) time.Duration {
	return backoffDelay(c.config, attempts)
}

func backoffDelay(cfg domain.RecoverySettings, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempts))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

// State returns a snapshot of the controller.
func (c *RecoveryController) State() domain.RecoveryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AttemptRecovery waits the next backoff delay and runs action once.
//
// It returns false without side effects when a recovery is already running,
// and false with CanRetry flipped off when the attempt budget is spent.
// Cancelling ctx, calling ResetRecovery or calling Close during the wait
// abandons the attempt without running action.
func (c *RecoveryController) AttemptRecovery(ctx context.Context, action RecoveryAction, priorErr error) bool {
	c.mu.Lock()
	if c.closed || c.state.Status == domain.RecoveryRunning {
		c.mu.Unlock()
		return false
	}
	if c.state.Attempts >= c.config.MaxAttempts {
		c.state.CanRetry = false
		c.state.Status = domain.RecoveryExhausted
		c.mu.Unlock()
		return false
	}

	delay := backoffDelay(c.config, c.state.Attempts)
	c.state.Status = domain.RecoveryRunning
	if priorErr != nil {
		c.state.LastError = priorErr
	}
	waitCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	gen := c.gen
	attempt := c.state.Attempts + 1
	c.mu.Unlock()
	defer cancel()

	recoveryLog.Info("attempt %d/%d in %s", attempt, c.config.MaxAttempts, delay)
	if err := sleepContext(waitCtx, delay); err != nil {
		recoveryLog.Debug("attempt %d abandoned: %v", attempt, err)
		c.mu.Lock()
		if c.gen == gen {
			c.settleAborted()
		}
		c.mu.Unlock()
		return false
	}

	err := action(waitCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// reset while the action ran; the result belongs to a stale attempt
		return false
	}
	c.cancel = nil
	c.metrics.RecoveryAttempt(err == nil)
	if err == nil {
		recoveryLog.Info("recovered after %d attempt(s)", attempt)
		c.state = domain.RecoveryState{Status: domain.RecoveryIdle, CanRetry: true}
		return true
	}

	c.state.Attempts++
	c.state.LastError = err
	c.state.CanRetry = c.state.Attempts < c.config.MaxAttempts
	if c.state.CanRetry {
		c.state.Status = domain.RecoveryFailed
		recoveryLog.Warn("attempt %d failed: %v", attempt, err)
	} else {
		c.state.Status = domain.RecoveryExhausted
		recoveryLog.Error("giving up after %d attempts: %v", c.state.Attempts, err)
	}
	return false
}

// settleAborted returns a cancelled attempt to its resting state.
// Caller must hold c.mu.
func (c *RecoveryController) settleAborted() {
	c.cancel = nil
	if c.state.LastError != nil {
		c.state.Status = domain.RecoveryFailed
	} else {
		c.state.Status = domain.RecoveryIdle
	}
}

// ResetRecovery returns the controller to idle from any state, aborting an
// in-flight wait.
func (c *RecoveryController) ResetRecovery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = domain.RecoveryState{Status: domain.RecoveryIdle, CanRetry: true}
}

// Close aborts any in-flight wait and refuses further attempts.
func (c *RecoveryController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	if c.state.Status == domain.RecoveryRunning {
		c.settleAborted()
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
