package rate

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultErrorThreshold consecutive failures before a cooldown is armed.
	DefaultErrorThreshold = 3
	// DefaultErrorCooldown time after which the failure counter is reset.
	DefaultErrorCooldown = 30 * time.Minute
)

// ErrorState is a point-in-time view of the tracker.
type ErrorState struct {
	ConsecutiveFailures int
	// CooldownUntil is zero when no cooldown is pending.
	CooldownUntil time.Time
}

// CooldownActive reports whether a cooldown is pending.
func (s ErrorState) CooldownActive() bool {
	return !s.CooldownUntil.IsZero()
}

type stopper interface {
	Stop() bool
}

// ErrorTracker counts consecutive refresh failures. Crossing the threshold
// arms one cancellable reset timer. The cooldown is advisory: it never blocks
// refresh attempts.
type ErrorTracker struct {
	mu            sync.Mutex
	failures      int
	cooldownUntil time.Time
	timer         stopper
	// generation invalidates callbacks of timers that were stopped too late.
	generation uint64

	threshold int
	cooldown  time.Duration
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
	logger    *zap.Logger
}

// NewErrorTracker creates a tracker. Non-positive values fall back to defaults.
func NewErrorTracker(threshold int, cooldown time.Duration, logger *zap.Logger) *ErrorTracker {
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultErrorCooldown
	}

	return &ErrorTracker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		logger: logger,
	}
}

// RecordFailure counts one failed refresh and returns the new count.
func (t *ErrorTracker) RecordFailure() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures++
	t.logger.Warn("refresh failed",
		zap.Int("consecutive_failures", t.failures),
		zap.Int("threshold", t.threshold))

	if t.failures >= t.threshold && t.timer == nil {
		t.generation++
		gen := t.generation
		t.cooldownUntil = t.now().Add(t.cooldown)
		t.timer = t.afterFunc(t.cooldown, func() { t.expire(gen) })
		t.logger.Warn("too many consecutive failures, cooldown armed",
			zap.Duration("cooldown", t.cooldown),
			zap.Time("until", t.cooldownUntil))
	}

	return t.failures
}

// RecordSuccess resets the counter and cancels a pending cooldown.
func (t *ErrorTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	t.cancelLocked()
}

// State returns the current counter and cooldown marker.
func (t *ErrorTracker) State() ErrorState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return ErrorState{ConsecutiveFailures: t.failures, CooldownUntil: t.cooldownUntil}
}

// Stop cancels a pending cooldown timer.
func (t *ErrorTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
}

func (t *ErrorTracker) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
	t.cooldownUntil = time.Time{}
}

func (t *ErrorTracker) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		return
	}
	t.failures = 0
	t.timer = nil
	t.cooldownUntil = time.Time{}
	t.logger.Info("cooldown elapsed, failure counter reset")
}
