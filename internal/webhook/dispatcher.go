// Package webhook delivers product and order notifications to LazyChat.
// Delivery never blocks or fails the store operation that caused it.
package webhook

import (
	"context"
	"sync"
	"time"

	"lazychat/internal/logger"
	"lazychat/internal/settings"
)

// SettingsLoader yields the current connector settings.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// ErrorReporter receives best-effort remote error reports.
type ErrorReporter interface {
	Error(message string, fields map[string]interface{})
}

type Options struct {
	PluginVersion string
	Workers       int
	QueueSize     int
	// Timeout bounds one delivery attempt.
	Timeout time.Duration
}

type Dispatcher struct {
	channel  Channel
	settings SettingsLoader
	reporter ErrorReporter
	logger   *logger.Logger
	opts     Options

	mu      sync.RWMutex
	queue   chan Message
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func NewDispatcher(channel Channel, settings SettingsLoader, reporter ErrorReporter, opts Options, logger *logger.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		channel:  channel,
		settings: settings,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
		queue:    make(chan Message, opts.QueueSize),
	}
}

// Start launches the delivery workers. It is safe to call more than once.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	d.wg.Add(d.opts.Workers)
	for i := 0; i < d.opts.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for msg := range d.queue {
				d.deliver(msg)
			}
		}()
	}
	d.logger.Info("Webhook dispatcher started with %d workers", d.opts.Workers)
}

// Stop refuses new webhooks, drains the queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
	d.logger.Info("Webhook dispatcher stopped")
}

// Send queues payload for delivery under event and returns whether it was
// accepted. It returns false without any I/O when the integration is off or
// no auth token is stored.
func (d *Dispatcher) Send(ctx context.Context, payload interface{}, event string) bool {
	st, err := d.settings.Load(ctx)
	if err != nil {
		d.logger.Error("Webhook %s skipped: cannot load settings: %v", event, err)
		return false
	}
	if !st.Active {
		d.logger.Debug("Webhook %s skipped: integration is inactive", event)
		return false
	}
	if st.AuthToken == "" {
		d.logger.Error("Webhook %s skipped: auth token not configured", event)
		return false
	}

	body, err := EncodeEnvelope(payload)
	if err != nil {
		d.logger.Error("Webhook %s skipped: %v", event, err)
		return false
	}

	msg := Message{
		Event:         event,
		EventID:       NewEventID(),
		ShopID:        st.ShopID,
		Token:         st.AuthToken,
		PluginVersion: d.opts.PluginVersion,
		Body:          body,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn("Webhook %s dropped: dispatcher stopped", event)
		return false
	}
	select {
	case d.queue <- msg:
		d.logger.Debug("Webhook %s queued as %s", event, msg.EventID)
		return true
	default:
		d.logger.Warn("Webhook %s dropped: queue full", event)
		return false
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	if err := d.channel.Deliver(ctx, msg); err != nil {
		d.logger.Error("Webhook delivery failed: %v", err)
		if d.reporter != nil {
			d.reporter.Error("Webhook delivery failed", map[string]interface{}{
				"event":    msg.Event,
				"event_id": msg.EventID,
				"error":    err.Error(),
			})
		}
		return
	}
	d.logger.Debug("Webhook %s delivered as %s", msg.Event, msg.EventID)
}
