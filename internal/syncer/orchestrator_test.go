package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
	"lazychat/internal/saas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	p   saas.Progress
	err error
}

type fakeBackend struct {
	mu         sync.Mutex
	trigger    saas.TriggerResult
	triggerErr error
	triggers   int
	script     []step
	polls      int
	onPoll     func()
}

func (b *fakeBackend) TriggerSync(context.Context, saas.Credentials) (saas.TriggerResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggers++
	return b.trigger, b.triggerErr
}

func (b *fakeBackend) SyncProgress(context.Context, saas.Credentials) (saas.Progress, error) {
	b.mu.Lock()
	i := b.polls
	if i >= len(b.script) {
		i = len(b.script) - 1
	}
	b.polls++
	s := b.script[i]
	hook := b.onPoll
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	return s.p, s.err
}

func (b *fakeBackend) pollCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

type recordingView struct {
	events   []string
	control  Control
	cooldown string
}

func (v *recordingView) add(format string, args ...interface{}) {
	v.events = append(v.events, fmt.Sprintf(format, args...))
}

func (v *recordingView) ShowInitiating()               { v.add("initiating") }
func (v *recordingView) ShowProgress(p saas.Progress)  { v.add("progress %.0f", p.Percent) }
func (v *recordingView) ShowCompleted(saas.Progress)   { v.add("completed") }
func (v *recordingView) ShowNoSync(saas.Progress)      { v.add("no_sync") }
func (v *recordingView) ShowUnknown(saas.Progress)     { v.add("unknown") }
func (v *recordingView) ShowError(message string)      { v.add("error: %s", message) }
func (v *recordingView) ShowLastSync(at string)        { v.add("last_sync %s", at) }
func (v *recordingView) ShowCooldown(remaining string) { v.cooldown = remaining }
func (v *recordingView) SetControl(c Control)          { v.control = c }

func (v *recordingView) has(event string) bool {
	for _, e := range v.events {
		if e == event {
			return true
		}
	}
	return false
}

type staticCreds saas.Credentials

func (s staticCreds) Credentials(context.Context) (saas.Credentials, error) {
	return saas.Credentials(s), nil
}

var session = staticCreds{Token: "tok", ShopID: "42"}

func inProgress(pct float64) step {
	return step{p: saas.Progress{Kind: saas.ProgressInProgress, IsSyncing: true, SyncStatus: "IN_PROGRESS", Percent: pct}}
}

func completed(lastSyncAt string) step {
	return step{p: saas.Progress{Kind: saas.ProgressCompleted, SyncStatus: "COMPLETED", Percent: 100, LastSyncAt: lastSyncAt}}
}

type fixture struct {
	clock   *clock.Fake
	backend *fakeBackend
	view    *recordingView
	store   *MemoryStore
	orch    *Orchestrator
}

func newFixture(t *testing.T, now time.Time, script ...step) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clock.NewFake(now),
		backend: &fakeBackend{trigger: saas.TriggerResult{Accepted: true}, script: script},
		view:    &recordingView{},
		store:   NewMemoryStore(),
	}
	f.orch = New(f.backend, session, f.view, Options{Clock: f.clock, Store: f.store}, logger.Nop())
	return f
}

var t0 = time.Date(2025, 12, 22, 5, 59, 1, 0, time.Local)

func TestScriptedSyncSuppressesOutputWhileLoading(t *testing.T) {
	f := newFixture(t, t0, inProgress(10), inProgress(55), completed("2025-12-22 06:00:00"))

	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, StateLoading, f.orch.State())
	assert.Equal(t, ControlHidden, f.view.control)
	assert.Equal(t, []string{"initiating"}, f.view.events)

	f.clock.Advance(2 * time.Second)
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 2, f.backend.pollCount())
	assert.Equal(t, []string{"initiating"}, f.view.events, "nothing rendered inside the loading window")

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 3, f.backend.pollCount())
	assert.Equal(t, []string{
		"initiating",
		"progress 55",
		"completed",
		"last_sync 2025-12-22 06:00:00",
	}, f.view.events)

	assert.Equal(t, StateCooldown, f.orch.State())
	assert.Equal(t, ControlDisabled, f.view.control)
	assert.Equal(t, "10:00", f.view.cooldown)

	at, ok, err := f.store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, t0.Add(6*time.Second).Equal(at))

	f.clock.Advance(30 * time.Second)
	assert.Equal(t, 3, f.backend.pollCount(), "polling stops after completion")
	assert.Equal(t, "09:30", f.view.cooldown)
}

func TestCompletionDuringLoadingWaitsForWindow(t *testing.T) {
	f := newFixture(t, t0, completed(""))

	require.NoError(t, f.orch.Start(context.Background()))
	f.clock.Advance(2 * time.Second)
	assert.False(t, f.view.has("completed"))
	assert.Equal(t, StateLoading, f.orch.State())

	f.clock.Advance(4 * time.Second)
	assert.True(t, f.view.has("completed"))
	assert.Equal(t, StateCooldown, f.orch.State())
}

func TestErrorsSwallowedOnlyWhileLoading(t *testing.T) {
	f := newFixture(t, t0,
		step{err: errors.New("timeout")},
		step{err: errors.New("timeout")},
		inProgress(30),
		step{err: &saas.TransportError{Op: "POST", Err: errors.New("reset")}},
	)

	require.NoError(t, f.orch.Start(context.Background()))
	f.clock.Advance(4 * time.Second)
	assert.Equal(t, []string{"initiating"}, f.view.events)

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, StatePolling, f.orch.State())
	assert.True(t, f.view.has("progress 30"))

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, StateError, f.orch.State())
	assert.Equal(t, ControlEnabled, f.view.control)
	assert.True(t, f.view.has("error: Could not reach LazyChat. Please check your connection and try again."))
	assert.Zero(t, f.clock.Pending())

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, 4, f.backend.pollCount())
}

func TestTerminalOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		p       saas.Progress
		state   State
		event   string
		control Control
	}{
		{"no sync", saas.Progress{Kind: saas.ProgressNoSync, SyncStatus: "NO_SYNC"}, StateNoSync, "no_sync", ControlEnabled},
		{"unknown", saas.Progress{Kind: saas.ProgressUnknown, IsSyncing: true, SyncStatus: "PAUSED"}, StateUnknown, "unknown", ControlEnabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, t0, step{p: tt.p})
			require.NoError(t, f.orch.Start(context.Background()))
			f.clock.Advance(6 * time.Second)

			assert.Equal(t, tt.state, f.orch.State())
			assert.True(t, f.view.has(tt.event))
			assert.Equal(t, tt.control, f.view.control)
			assert.Zero(t, f.clock.Pending())
			_, ok, _ := f.store.Load()
			assert.False(t, ok)
		})
	}
}

func TestStartWithoutSessionMakesNoCalls(t *testing.T) {
	f := newFixture(t, t0, inProgress(1))
	f.orch = New(f.backend, staticCreds{Token: "tok"}, f.view, Options{Clock: f.clock, Store: f.store}, logger.Nop())

	err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, saas.ErrNotConfigured)
	assert.Zero(t, f.backend.triggers)
	assert.Zero(t, f.backend.pollCount())
	assert.True(t, f.view.has("error: Please log in to LazyChat and select a shop first."))
}

func TestTriggerRejected(t *testing.T) {
	f := newFixture(t, t0, inProgress(1))
	f.backend.trigger = saas.TriggerResult{Accepted: false, Message: "A sync is already queued."}

	err := f.orch.Start(context.Background())
	assert.ErrorIs(t, err, ErrTriggerRejected)
	assert.Equal(t, StateError, f.orch.State())
	assert.Equal(t, ControlEnabled, f.view.control)
	assert.True(t, f.view.has("error: A sync is already queued."))
	assert.Zero(t, f.clock.Pending())
}

func TestRestartCancelsPreviousLoop(t *testing.T) {
	f := newFixture(t, t0, inProgress(5))

	require.NoError(t, f.orch.Start(context.Background()))
	f.clock.Advance(time.Second)
	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, 2, f.clock.Pending(), "one poll timer and one loading timer")

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 1, f.backend.pollCount())
}

func TestLateResponseAfterStopIsDropped(t *testing.T) {
	f := newFixture(t, t0, inProgress(5))

	require.NoError(t, f.orch.Start(context.Background()))
	f.clock.Advance(6 * time.Second)
	require.True(t, f.view.has("progress 5"))
	f.view.events = nil

	f.backend.onPoll = f.orch.Stop
	f.clock.Advance(2 * time.Second)

	assert.Empty(t, f.view.events)
	assert.Zero(t, f.clock.Pending())
}

func TestCooldownCountdown(t *testing.T) {
	f := newFixture(t, t0, completed(""))
	require.NoError(t, f.store.Save(t0))

	require.NoError(t, f.orch.Reconcile(context.Background()))
	assert.Equal(t, StateCooldown, f.orch.State())
	assert.Equal(t, "10:00", f.view.cooldown)

	f.clock.Advance(9*time.Minute + 59*time.Second)
	assert.Equal(t, ControlDisabled, f.view.control)
	assert.Equal(t, "00:01", f.view.cooldown)
	assert.ErrorIs(t, f.orch.Start(context.Background()), ErrCooldownActive)
	assert.Zero(t, f.backend.triggers)

	f.clock.Advance(time.Second)
	assert.Equal(t, ControlEnabled, f.view.control)
	assert.Equal(t, StateIdle, f.orch.State())
	_, ok, _ := f.store.Load()
	assert.False(t, ok)
	assert.Zero(t, f.clock.Pending())
}

func TestStartExpiresStaleCooldown(t *testing.T) {
	f := newFixture(t, t0.Add(CooldownWindow), inProgress(1))
	require.NoError(t, f.store.Save(t0))

	require.NoError(t, f.orch.Start(context.Background()))
	assert.Equal(t, 1, f.backend.triggers)
	_, ok, _ := f.store.Load()
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	t.Run("resumes polling", func(t *testing.T) {
		f := newFixture(t, t0, inProgress(40), inProgress(70))
		require.NoError(t, f.orch.Reconcile(context.Background()))
		assert.Equal(t, StatePolling, f.orch.State())
		assert.Equal(t, []string{"progress 40"}, f.view.events)

		f.clock.Advance(2 * time.Second)
		assert.Equal(t, []string{"progress 40", "progress 70"}, f.view.events)
	})

	t.Run("completion inside window", func(t *testing.T) {
		now := t0.Add(6 * time.Minute)
		f := newFixture(t, now, completed("2025-12-22 05:59:01"))
		require.NoError(t, f.orch.Reconcile(context.Background()))
		assert.Equal(t, StateCooldown, f.orch.State())
		assert.Equal(t, "04:00", f.view.cooldown)
		at, ok, _ := f.store.Load()
		require.True(t, ok)
		assert.True(t, t0.Equal(at))
	})

	t.Run("completion outside window", func(t *testing.T) {
		f := newFixture(t, t0.Add(time.Hour), completed("2025-12-22 05:59:01"))
		require.NoError(t, f.orch.Reconcile(context.Background()))
		assert.Equal(t, StateIdle, f.orch.State())
		assert.Equal(t, ControlEnabled, f.view.control)
		assert.True(t, f.view.has("last_sync 2025-12-22 05:59:01"))
	})

	t.Run("malformed timestamp means no cooldown", func(t *testing.T) {
		f := newFixture(t, t0, completed("2025/12/22"))
		require.NoError(t, f.orch.Reconcile(context.Background()))
		assert.Equal(t, StateIdle, f.orch.State())
		assert.Equal(t, ControlEnabled, f.view.control)
		assert.Zero(t, f.clock.Pending())
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, t0, inProgress(1))
		f.orch = New(f.backend, staticCreds{}, f.view, Options{Clock: f.clock, Store: f.store}, logger.Nop())
		assert.ErrorIs(t, f.orch.Reconcile(context.Background()), saas.ErrNotConfigured)
		assert.Zero(t, f.backend.pollCount())
	})
}
