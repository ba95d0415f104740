// Package scheduler runs one long-lived goroutine per user with auto
// check-in enabled. Each runner sleeps until the user's configured daily
// time, performs the check-in, notifies the configured chats exactly
// once, and loops for the next day.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
	"github.com/yclw/dus-checkin-bot/internal/history"
)

// Checker performs one check-in attempt; the portal client implements it.
type Checker interface {
	PerformCheckin(ctx context.Context, cfg domain.UserConfig) (domain.CheckinResult, string)
}

// Notifier fans a result out to the user's configured chats.
type Notifier interface {
	Notify(cfg domain.UserConfig, result domain.CheckinResult, userID string)
}

// Settings exposes the per-user configuration the runner re-reads at
// every decision point.
type Settings interface {
	Get(userID string) domain.UserConfig
	Update(userID string, fn func(*domain.UserConfig)) (domain.UserConfig, error)
}

// Recorder logs each attempt; the history repo implements it.
type Recorder interface {
	Record(ctx context.Context, userID string, result domain.CheckinResult, source string) error
}

// DefaultCooldown is how long a runner backs off after an unexpected
// internal error, so a broken setup cannot hammer the portal in a loop.
const DefaultCooldown = time.Hour

// Manager owns all runners and guarantees at most one per user.
type Manager struct {
	log      *zap.Logger
	settings Settings
	checker  Checker
	notifier Notifier
	recorder Recorder
	cooldown time.Duration

	mu      sync.Mutex
	runners map[string]*runner
}

type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(log *zap.Logger, settings Settings, checker Checker, notifier Notifier, recorder Recorder) *Manager {
	return &Manager{
		log:      log,
		settings: settings,
		checker:  checker,
		notifier: notifier,
		recorder: recorder,
		cooldown: DefaultCooldown,
		runners:  make(map[string]*runner),
	}
}

// Start launches a runner for the user, first cancelling and awaiting any
// previous one so two runners never race for the same user. The table is
// re-checked after every wait because a concurrent Start may have
// registered a new runner while the lock was released.
func (m *Manager) Start(ctx context.Context, userID string) {
	m.mu.Lock()
	for {
		prev, ok := m.runners[userID]
		if !ok {
			break
		}
		delete(m.runners, userID)
		prev.cancel()
		m.mu.Unlock()
		<-prev.done
		m.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &runner{cancel: cancel, done: make(chan struct{})}
	m.runners[userID] = r
	m.mu.Unlock()

	m.log.Info("auto check-in scheduled", zap.String("user", userID))
	go m.run(runCtx, userID, r.done)
}

// Stop cancels the user's runner, if any, and waits for it to exit.
// Cancellation during the nightly sleep is observed promptly and emits no
// notification.
func (m *Manager) Stop(userID string) {
	m.mu.Lock()
	r, ok := m.runners[userID]
	if ok {
		delete(m.runners, userID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
	m.log.Info("auto check-in cancelled", zap.String("user", userID))
}

// StopAll cancels every runner and awaits termination. Used at shutdown;
// cancellation is the normal outcome here, not an error.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runners := m.runners
	m.runners = make(map[string]*runner)
	m.mu.Unlock()

	for _, r := range runners {
		r.cancel()
	}
	for _, r := range runners {
		<-r.done
	}
	m.log.Info("all schedulers stopped", zap.Int("count", len(runners)))
}

func (m *Manager) run(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	for {
		cfg := m.settings.Get(userID)
		if !cfg.AutoEnabled {
			return
		}

		next, err := domain.NextRun(time.Now(), cfg.AutoTime)
		if err != nil {
			// Stored time is unusable; back off instead of spinning.
			m.log.Warn("invalid auto check-in time",
				zap.String("user", userID),
				zap.String("time", cfg.AutoTime),
				zap.Error(err))
			if !m.sleep(ctx, m.cooldown) {
				return
			}
			continue
		}

		if !m.sleep(ctx, time.Until(next)) {
			return
		}

		// Re-read the config at fire time: a change made while waiting
		// takes effect before this fire.
		cfg = m.settings.Get(userID)
		if !cfg.AutoEnabled {
			return
		}
		m.fire(ctx, userID, cfg)
	}
}

// sleep waits for d or until ctx is cancelled; it reports whether the
// full duration elapsed.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fire performs one scheduled attempt and notifies exactly once. An
// unexpected panic is contained here and answered with the cooldown so
// the loop resumes waiting for the next scheduled time.
func (m *Manager) fire(ctx context.Context, userID string, cfg domain.UserConfig) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log.Error("check-in attempt panicked",
				zap.String("user", userID),
				zap.Any("panic", rec))
			m.sleep(ctx, m.cooldown)
		}
	}()

	result, resolvedClass := m.checker.PerformCheckin(ctx, cfg)

	if resolvedClass != "" {
		if _, err := m.settings.Update(userID, func(c *domain.UserConfig) {
			c.ClassID = resolvedClass
		}); err != nil {
			m.log.Error("caching class id failed", zap.String("user", userID), zap.Error(err))
		}
	}

	if err := m.recorder.Record(ctx, userID, result, history.SourceAuto); err != nil {
		m.log.Error("recording attempt failed", zap.String("user", userID), zap.Error(err))
	}

	m.notifier.Notify(cfg, result, userID)
	m.log.Info("scheduled check-in finished",
		zap.String("user", userID),
		zap.Bool("success", result.Success))
}
