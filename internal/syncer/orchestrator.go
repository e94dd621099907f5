// Package syncer drives a bulk product sync: it triggers the remote job,
// polls its progress, renders the result and enforces the cooldown between
// syncs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
	"lazychat/internal/saas"
)

var (
	ErrCooldownActive  = errors.New("syncer: a sync finished recently, please wait")
	ErrTriggerRejected = errors.New("syncer: sync request was rejected")
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateLoading
	StatePolling
	StateCompleted
	StateNoSync
	StateError
	StateUnknown
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateLoading:
		return "loading"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateNoSync:
		return "no_sync"
	case StateError:
		return "error"
	case StateUnknown:
		return "unknown"
	case StateCooldown:
		return "cooldown"
	default:
		return "invalid"
	}
}

// Backend is the remote sync job.
type Backend interface {
	TriggerSync(ctx context.Context, creds saas.Credentials) (saas.TriggerResult, error)
	SyncProgress(ctx context.Context, creds saas.Credentials) (saas.Progress, error)
}

type Timing struct {
	PollInterval  time.Duration
	LoadingWindow time.Duration
	CooldownTick  time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		PollInterval:  2 * time.Second,
		LoadingWindow: 6 * time.Second,
		CooldownTick:  time.Second,
	}
}

type Options struct {
	Timing Timing
	Clock  clock.Clock
	Store  CooldownStore
}

// pollLoop is one polling cycle. The orchestrator owns at most one; a
// callback whose loop is no longer current does nothing.
type pollLoop struct {
	creds    saas.Credentials
	loading  bool
	captured *saas.Progress
	poll     clock.Timer
	window   clock.Timer
}

type countdown struct {
	completedAt time.Time
	timer       clock.Timer
}

type Orchestrator struct {
	backend Backend
	source  saas.CredentialSource
	view    View
	timing  Timing
	clock   clock.Clock
	store   CooldownStore
	logger  *logger.Logger

	mu       sync.Mutex
	state    State
	loop     *pollLoop
	cooldown *countdown
	starting int
}

func New(backend Backend, source saas.CredentialSource, view View, opts Options, logger *logger.Logger) *Orchestrator {
	def := DefaultTiming()
	if opts.Timing.PollInterval <= 0 {
		opts.Timing.PollInterval = def.PollInterval
	}
	if opts.Timing.LoadingWindow <= 0 {
		opts.Timing.LoadingWindow = def.LoadingWindow
	}
	if opts.Timing.CooldownTick <= 0 {
		opts.Timing.CooldownTick = def.CooldownTick
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	return &Orchestrator{
		backend: backend,
		source:  source,
		view:    view,
		timing:  opts.Timing,
		clock:   opts.Clock,
		store:   opts.Store,
		logger:  logger,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start triggers a sync and begins polling. It fails without any network
// call while a cooldown is running or when no session is configured.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.cooldownActiveLocked() {
		o.mu.Unlock()
		return ErrCooldownActive
	}
	creds, err := o.credentials(ctx)
	if err != nil {
		o.view.ShowError(saas.UserMessage(err))
		o.mu.Unlock()
		return err
	}

	o.cancelLocked()
	o.starting++
	attempt := o.starting
	o.state = StateStarting
	o.view.SetControl(ControlHidden)
	o.view.ShowInitiating()
	o.mu.Unlock()

	result, err := o.backend.TriggerSync(ctx, creds)

	o.mu.Lock()
	defer o.mu.Unlock()
	if attempt != o.starting || o.state != StateStarting {
		o.logger.Debug("Dropping sync trigger response from a cancelled start")
		return nil
	}
	if err != nil {
		o.failLocked(saas.UserMessage(err))
		return err
	}
	if !result.Accepted {
		msg := result.Message
		if msg == "" {
			msg = "LazyChat did not accept the sync request."
		}
		o.failLocked(msg)
		return fmt.Errorf("%w: %s", ErrTriggerRejected, msg)
	}

	o.logger.Info("Product sync started")
	o.beginLoopLocked(creds, true)
	return nil
}

// Reconcile performs a single poll to pick up where a previous session left
// off: a running sync resumes polling, a recent completion resumes the
// cooldown, an older one only shows the last-sync time.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	o.mu.Lock()
	o.cancelLocked()
	o.state = StateIdle
	creds, err := o.credentials(ctx)
	if err != nil {
		o.applyStoredCooldownLocked()
		o.mu.Unlock()
		return err
	}
	o.starting++
	attempt := o.starting
	o.mu.Unlock()

	p, err := o.backend.SyncProgress(ctx, creds)

	o.mu.Lock()
	defer o.mu.Unlock()
	if attempt != o.starting || o.loop != nil {
		return nil
	}
	if err != nil {
		o.logger.Warn("Could not read sync progress: %v", err)
		o.applyStoredCooldownLocked()
		return err
	}

	switch p.Kind {
	case saas.ProgressInProgress:
		o.beginLoopLocked(creds, false)
		o.state = StatePolling
		o.view.ShowProgress(p)
		o.view.SetControl(ControlHidden)
	case saas.ProgressCompleted:
		if p.LastSyncAt != "" {
			o.view.ShowLastSync(p.LastSyncAt)
		}
		completedAt, ok := o.completionTimeLocked(p.LastSyncAt)
		if !ok {
			o.view.SetControl(ControlEnabled)
			return nil
		}
		o.enterCooldownLocked(completedAt)
	default:
		if p.LastSyncAt != "" {
			o.view.ShowLastSync(p.LastSyncAt)
		}
		o.applyStoredCooldownLocked()
	}
	return nil
}

// Stop cancels polling and the countdown. Responses still in flight are
// dropped when they arrive.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
	o.starting++
}

func (o *Orchestrator) credentials(ctx context.Context) (saas.Credentials, error) {
	if o.source == nil {
		return saas.Credentials{}, saas.ErrNotConfigured
	}
	creds, err := o.source.Credentials(ctx)
	if err != nil {
		return saas.Credentials{}, err
	}
	if !creds.Complete() {
		return saas.Credentials{}, saas.ErrNotConfigured
	}
	return creds, nil
}

func (o *Orchestrator) beginLoopLocked(creds saas.Credentials, loading bool) {
	o.stopLoopLocked()
	l := &pollLoop{creds: creds, loading: loading}
	o.loop = l
	if loading {
		o.state = StateLoading
		l.window = o.clock.AfterFunc(o.timing.LoadingWindow, func() { o.endLoading(l) })
	}
	l.poll = o.clock.AfterFunc(o.timing.PollInterval, func() { o.tick(l) })
}

func (o *Orchestrator) tick(l *pollLoop) {
	o.mu.Lock()
	if o.loop != l {
		o.mu.Unlock()
		return
	}
	creds := l.creds
	o.mu.Unlock()

	p, err := o.backend.SyncProgress(context.Background(), creds)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loop != l {
		o.logger.Debug("Dropping late sync progress response")
		return
	}

	if l.loading {
		if err != nil {
			o.logger.Debug("Sync progress error while loading: %v", err)
		} else {
			l.captured = &p
		}
	} else if err != nil {
		o.logger.Warn("Sync progress failed: %v", err)
		o.stopLoopLocked()
		o.failLocked(saas.UserMessage(err))
		return
	} else if !o.renderLocked(p) {
		return
	}

	l.poll = o.clock.AfterFunc(o.timing.PollInterval, func() { o.tick(l) })
}

func (o *Orchestrator) endLoading(l *pollLoop) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loop != l || !l.loading {
		return
	}
	l.loading = false
	l.window = nil
	o.state = StatePolling
	if l.captured != nil {
		p := *l.captured
		l.captured = nil
		o.renderLocked(p)
	}
}

// renderLocked shows one live observation and reports whether polling
// continues.
func (o *Orchestrator) renderLocked(p saas.Progress) bool {
	switch p.Kind {
	case saas.ProgressInProgress:
		o.state = StatePolling
		o.view.ShowProgress(p)
		o.view.SetControl(ControlHidden)
		return true
	case saas.ProgressNoSync:
		o.stopLoopLocked()
		o.state = StateNoSync
		o.view.ShowNoSync(p)
		o.view.SetControl(ControlEnabled)
		return false
	case saas.ProgressCompleted:
		o.stopLoopLocked()
		o.state = StateCompleted
		o.view.ShowCompleted(p)
		if p.LastSyncAt != "" {
			o.view.ShowLastSync(p.LastSyncAt)
		}
		completedAt := o.clock.Now()
		if err := o.store.Save(completedAt); err != nil {
			o.logger.Warn("Could not store sync completion time: %v", err)
		}
		o.logger.Info("Product sync completed")
		o.enterCooldownLocked(completedAt)
		return false
	default:
		o.stopLoopLocked()
		o.state = StateUnknown
		o.view.ShowUnknown(p)
		o.view.SetControl(ControlEnabled)
		return false
	}
}

func (o *Orchestrator) failLocked(message string) {
	o.state = StateError
	o.view.ShowError(message)
	o.view.SetControl(ControlEnabled)
}

// completionTimeLocked picks the later of the stored completion time and the
// server's last_sync_at. An unparsable server value is ignored.
func (o *Orchestrator) completionTimeLocked(lastSyncAt string) (time.Time, bool) {
	stored, ok, err := o.store.Load()
	if err != nil {
		o.logger.Warn("Could not read sync cooldown: %v", err)
		ok = false
	}
	server, perr := ParseServerTime(lastSyncAt)
	if perr != nil {
		o.logger.Debug("Ignoring last_sync_at: %v", perr)
		return stored, ok
	}
	if ok && stored.After(server) {
		return stored, true
	}
	return server, true
}

func (o *Orchestrator) applyStoredCooldownLocked() {
	completedAt, ok, err := o.store.Load()
	if err != nil {
		o.logger.Warn("Could not read sync cooldown: %v", err)
	}
	if err != nil || !ok {
		o.view.SetControl(ControlEnabled)
		return
	}
	o.enterCooldownLocked(completedAt)
}

func (o *Orchestrator) enterCooldownLocked(completedAt time.Time) {
	o.stopCooldownLocked()
	left := Remaining(completedAt, o.clock.Now())
	if left <= 0 {
		o.expireCooldownLocked()
		return
	}
	if err := o.store.Save(completedAt); err != nil {
		o.logger.Warn("Could not store sync completion time: %v", err)
	}
	c := &countdown{completedAt: completedAt}
	o.cooldown = c
	o.state = StateCooldown
	o.view.SetControl(ControlDisabled)
	o.view.ShowCooldown(FormatRemaining(left))
	c.timer = o.clock.AfterFunc(o.timing.CooldownTick, func() { o.cooldownTick(c) })
}

func (o *Orchestrator) cooldownTick(c *countdown) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cooldown != c {
		return
	}
	left := Remaining(c.completedAt, o.clock.Now())
	if left <= 0 {
		o.cooldown = nil
		o.expireCooldownLocked()
		return
	}
	o.view.ShowCooldown(FormatRemaining(left))
	c.timer = o.clock.AfterFunc(o.timing.CooldownTick, func() { o.cooldownTick(c) })
}

func (o *Orchestrator) expireCooldownLocked() {
	if err := o.store.Clear(); err != nil {
		o.logger.Warn("Could not clear sync cooldown: %v", err)
	}
	o.state = StateIdle
	o.view.SetControl(ControlEnabled)
}

func (o *Orchestrator) cooldownActiveLocked() bool {
	if o.cooldown != nil {
		return Remaining(o.cooldown.completedAt, o.clock.Now()) > 0
	}
	completedAt, ok, err := o.store.Load()
	if err != nil || !ok {
		return false
	}
	if Remaining(completedAt, o.clock.Now()) > 0 {
		o.enterCooldownLocked(completedAt)
		return true
	}
	o.expireCooldownLocked()
	return false
}

func (o *Orchestrator) stopLoopLocked() {
	if o.loop == nil {
		return
	}
	if o.loop.poll != nil {
		o.loop.poll.Stop()
	}
	if o.loop.window != nil {
		o.loop.window.Stop()
	}
	o.loop = nil
}

func (o *Orchestrator) stopCooldownLocked() {
	if o.cooldown == nil {
		return
	}
	if o.cooldown.timer != nil {
		o.cooldown.timer.Stop()
	}
	o.cooldown = nil
}

func (o *Orchestrator) cancelLocked() {
	o.stopLoopLocked()
	o.stopCooldownLocked()
}
