package webhook

import (
	"context"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
	"lazychat/internal/models"
	"lazychat/internal/tracker"
)

// Sender is the part of Dispatcher the hooks need.
type Sender interface {
	Send(ctx context.Context, payload interface{}, event string) bool
}

// Hooks turns catalog lifecycle events into webhooks.
type Hooks struct {
	sender   Sender
	tracker  *tracker.Tracker
	settings SettingsLoader
	clock    clock.Clock
	logger   *logger.Logger
}

func NewHooks(sender Sender, tr *tracker.Tracker, settings SettingsLoader, clk clock.Clock, logger *logger.Logger) *Hooks {
	if clk == nil {
		clk = clock.Real()
	}
	return &Hooks{sender: sender, tracker: tr, settings: settings, clock: clk, logger: logger}
}

type productUpdate struct {
	*models.Product
	ChangedFields []string `json:"changed_fields"`
}

type productDeletion struct {
	ID        uint   `json:"id"`
	DeletedAt string `json:"deleted_at"`
}

func (h *Hooks) ProductCreated(ctx context.Context, p *models.Product) {
	if !h.enabled(ctx, func(s webhookFlags) bool { return s.products }) {
		return
	}
	if err := h.tracker.Remember(ctx, p); err != nil {
		h.logger.Warn("Could not prime snapshot for product %d: %v", p.ID, err)
	}
	h.sender.Send(ctx, p, EventProductCreated)
}

func (h *Hooks) ProductUpdated(ctx context.Context, p *models.Product) {
	if !h.enabled(ctx, func(s webhookFlags) bool { return s.products }) {
		return
	}
	decision, err := h.tracker.Check(ctx, p)
	if err != nil {
		h.logger.Warn("Change check for product %d failed: %v", p.ID, err)
		return
	}
	if !decision.Dispatch {
		h.logger.Debug("Product %d unchanged, no webhook", p.ID)
		return
	}
	h.sender.Send(ctx, productUpdate{Product: p, ChangedFields: decision.ChangedFields}, EventProductUpdated)
}

func (h *Hooks) ProductDeleted(ctx context.Context, id uint) {
	if err := h.tracker.Forget(ctx, id); err != nil {
		h.logger.Warn("Could not forget snapshot for product %d: %v", id, err)
	}
	if !h.enabled(ctx, func(s webhookFlags) bool { return s.products }) {
		return
	}
	h.sender.Send(ctx, productDeletion{
		ID:        id,
		DeletedAt: h.clock.Now().UTC().Format(time.RFC3339),
	}, EventProductDeleted)
}

func (h *Hooks) OrderCreated(ctx context.Context, o *models.Order) {
	if !h.enabled(ctx, func(s webhookFlags) bool { return s.orders }) {
		return
	}
	h.sender.Send(ctx, o, EventOrderCreated)
}

func (h *Hooks) OrderUpdated(ctx context.Context, o *models.Order) {
	if !h.enabled(ctx, func(s webhookFlags) bool { return s.orders }) {
		return
	}
	h.sender.Send(ctx, o, EventOrderUpdated)
}

type webhookFlags struct {
	products bool
	orders   bool
}

// enabled reports whether a webhook could be delivered right now. The tracker
// only runs behind it, so changes made while the integration is off stay
// pending until the next save after reactivation.
func (h *Hooks) enabled(ctx context.Context, pick func(webhookFlags) bool) bool {
	st, err := h.settings.Load(ctx)
	if err != nil {
		h.logger.Error("Cannot load webhook settings: %v", err)
		return false
	}
	if !st.Active || st.AuthToken == "" {
		return false
	}
	return pick(webhookFlags{products: st.ProductWebhooks, orders: st.OrderWebhooks})
}
