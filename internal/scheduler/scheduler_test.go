package scheduler

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

type fakeSettings struct {
	mu   sync.Mutex
	cfgs map[string]domain.UserConfig
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{cfgs: make(map[string]domain.UserConfig)}
}

func (f *fakeSettings) Get(userID string) domain.UserConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.cfgs[userID]
	if !ok {
		cfg = domain.NewUserConfig()
	}
	return cfg.Clone()
}

func (f *fakeSettings) Update(userID string, fn func(*domain.UserConfig)) (domain.UserConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.cfgs[userID]
	if !ok {
		cfg = domain.NewUserConfig()
	}
	fn(&cfg)
	f.cfgs[userID] = cfg
	return cfg.Clone(), nil
}

type fakeChecker struct {
	mu       sync.Mutex
	calls    int
	result   domain.CheckinResult
	resolved string
}

func (f *fakeChecker) PerformCheckin(context.Context, domain.UserConfig) (domain.CheckinResult, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.resolved
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (f *fakeNotifier) Notify(domain.UserConfig, domain.CheckinResult, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeRecorder) Record(_ context.Context, _ string, _ domain.CheckinResult, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return nil
}

func newTestManager(settings *fakeSettings) (*Manager, *fakeChecker, *fakeNotifier, *fakeRecorder) {
	checker := &fakeChecker{result: domain.CheckinResult{Success: true, Message: "ok"}}
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	m := NewManager(zap.NewNop(), settings, checker, notifier, recorder)
	return m, checker, notifier, recorder
}

func TestFire_NotifiesOnceAndCachesClass(t *testing.T) {
	settings := newFakeSettings()
	m, checker, notifier, recorder := newTestManager(settings)
	checker.resolved = "1234"

	cfg := settings.Get("42")
	m.fire(context.Background(), "42", cfg)

	require.Equal(t, 1, notifier.calls())
	require.Equal(t, []string{"auto"}, recorder.sources)
	require.Equal(t, "1234", settings.Get("42").ClassID)
}

func TestStop_DuringSleepEmitsNothing(t *testing.T) {
	settings := newFakeSettings()
	_, _ = settings.Update("42", func(c *domain.UserConfig) {
		c.AutoEnabled = true
		// Fire time comfortably in the future so the runner is asleep.
		c.AutoTime = time.Now().Add(3 * time.Hour).Format("15:04")
	})
	m, checker, notifier, _ := newTestManager(settings)

	m.Start(context.Background(), "42")
	time.Sleep(50 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		m.Stop("42")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not observe cancellation promptly")
	}

	require.Equal(t, 0, notifier.calls())
	checker.mu.Lock()
	defer checker.mu.Unlock()
	require.Equal(t, 0, checker.calls)
}

func TestStart_ReplacesPreviousRunner(t *testing.T) {
	settings := newFakeSettings()
	_, _ = settings.Update("42", func(c *domain.UserConfig) {
		c.AutoEnabled = true
		c.AutoTime = time.Now().Add(3 * time.Hour).Format("15:04")
	})
	m, _, _, _ := newTestManager(settings)

	m.Start(context.Background(), "42")
	m.mu.Lock()
	first := m.runners["42"]
	m.mu.Unlock()

	m.Start(context.Background(), "42")
	select {
	case <-first.done:
	case <-time.After(2 * time.Second):
		t.Fatal("previous runner was not terminated")
	}

	m.mu.Lock()
	second := m.runners["42"]
	m.mu.Unlock()
	require.NotSame(t, first, second)

	m.StopAll()
}

func TestStart_ConcurrentCallsLeaveOneRunner(t *testing.T) {
	settings := newFakeSettings()
	_, _ = settings.Update("42", func(c *domain.UserConfig) {
		c.AutoEnabled = true
		c.AutoTime = time.Now().Add(3 * time.Hour).Format("15:04")
	})
	m, _, _, _ := newTestManager(settings)

	m.Start(context.Background(), "42")
	base := runtime.NumGoroutine()

	barrier := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-barrier
			m.Start(context.Background(), "42")
		}()
	}
	close(barrier)
	wg.Wait()

	m.mu.Lock()
	count := len(m.runners)
	m.mu.Unlock()
	require.Equal(t, 1, count)

	m.StopAll()

	// Every runner must be reachable by StopAll; an orphan would keep its
	// goroutine asleep until the far-future fire time.
	deadline := time.After(2 * time.Second)
	for runtime.NumGoroutine() >= base {
		select {
		case <-deadline:
			t.Fatalf("leaked %d runner goroutine(s) after StopAll", runtime.NumGoroutine()-base+1)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestRun_DisabledUserExitsImmediately(t *testing.T) {
	settings := newFakeSettings() // AutoEnabled defaults to false
	m, _, notifier, _ := newTestManager(settings)

	m.Start(context.Background(), "42")

	m.mu.Lock()
	r := m.runners["42"]
	m.mu.Unlock()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit for a disabled user")
	}
	require.Equal(t, 0, notifier.calls())
}
