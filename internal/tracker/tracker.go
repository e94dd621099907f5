// Package tracker decides whether a product changed enough since the last
// webhook evaluation to be worth another webhook.
package tracker

import (
	"context"
	"fmt"

	"lazychat/internal/logger"
	"lazychat/internal/models"
)

// ProductLoader reads the live state of a product.
type ProductLoader interface {
	Product(ctx context.Context, id uint) (*models.Product, error)
}

// Telemetry receives best-effort debug events. Implementations must not block.
type Telemetry interface {
	Debug(event string, fields map[string]interface{})
}

type Decision struct {
	Dispatch      bool
	ChangedFields []string
	// FirstTrack is set when no previous snapshot was found.
	FirstTrack bool
}

type Tracker struct {
	products  ProductLoader
	cache     Cache
	telemetry Telemetry
	logger    *logger.Logger
}

func New(products ProductLoader, cache Cache, telemetry Telemetry, logger *logger.Logger) *Tracker {
	return &Tracker{
		products:  products,
		cache:     cache,
		telemetry: telemetry,
		logger:    logger,
	}
}

// ShouldDispatch loads the product and evaluates it with Check.
func (t *Tracker) ShouldDispatch(ctx context.Context, productID uint) (Decision, error) {
	p, err := t.products.Product(ctx, productID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	return t.Check(ctx, p)
}

// Check compares p against the cached snapshot and always replaces the cache
// entry with the current snapshot. Cache failures degrade to a first track.
func (t *Tracker) Check(ctx context.Context, p *models.Product) (Decision, error) {
	cur := BuildSnapshot(p)

	prev, found, err := t.cache.Get(ctx, p.ID)
	if err != nil {
		t.logger.Warn("Snapshot lookup for product %d failed: %v", p.ID, err)
		found = false
	}

	decision := Decision{Dispatch: true, ChangedFields: []string{}, FirstTrack: !found}
	if found {
		decision.ChangedFields = Diff(prev, cur)
		decision.Dispatch = len(decision.ChangedFields) > 0
	}

	if err := t.cache.Set(ctx, p.ID, cur); err != nil {
		t.logger.Warn("Snapshot store for product %d failed: %v", p.ID, err)
	}

	t.report(p.ID, decision)
	return decision, nil
}

// Remember primes the cache with the current state of p.
func (t *Tracker) Remember(ctx context.Context, p *models.Product) error {
	return t.cache.Set(ctx, p.ID, BuildSnapshot(p))
}

func (t *Tracker) Forget(ctx context.Context, productID uint) error {
	return t.cache.Forget(ctx, productID)
}

func (t *Tracker) report(productID uint, d Decision) {
	if t.telemetry == nil {
		return
	}
	t.telemetry.Debug("product_change_check", map[string]interface{}{
		"product_id":     productID,
		"should_send":    d.Dispatch,
		"first_track":    d.FirstTrack,
		"changed_fields": d.ChangedFields,
	})
}
