package webhook

import (
	"context"
	"testing"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/logger"
	"lazychat/internal/models"
	"lazychat/internal/settings"
	"lazychat/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	payload interface{}
	event   string
}

// switchableSettings lets a test flip the active flag between calls.
type switchableSettings struct {
	st settings.Settings
}

func (s *switchableSettings) Load(context.Context) (settings.Settings, error) {
	return s.st, nil
}

type recordingSender struct {
	sent []sent
}

func (r *recordingSender) Send(_ context.Context, payload interface{}, event string) bool {
	r.sent = append(r.sent, sent{payload: payload, event: event})
	return true
}

func newHooks(t *testing.T, st settings.Settings) (*Hooks, *recordingSender, *clock.Fake) {
	t.Helper()
	cache := tracker.NewMemoryCache(time.Hour)
	t.Cleanup(cache.Close)
	tr := tracker.New(nil, cache, nil, logger.Nop())
	sender := &recordingSender{}
	clk := clock.NewFake(time.Date(2025, 12, 22, 5, 59, 1, 0, time.UTC))
	return NewHooks(sender, tr, staticSettings{st: st}, clk, logger.Nop()), sender, clk
}

func hookProduct() *models.Product {
	return &models.Product{ID: 4, Name: "Lamp", Price: "30", RegularPrice: "30", Status: models.ProductStatusPublish}
}

func TestCreateThenUnchangedUpdateSendsOnce(t *testing.T) {
	h, sender, _ := newHooks(t, activeSettings)
	p := hookProduct()

	h.ProductCreated(context.Background(), p)
	h.ProductUpdated(context.Background(), p)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, EventProductCreated, sender.sent[0].event)
}

func TestUpdateCarriesChangedFields(t *testing.T) {
	h, sender, _ := newHooks(t, activeSettings)
	p := hookProduct()
	h.ProductCreated(context.Background(), p)

	p.Price = "25"
	h.ProductUpdated(context.Background(), p)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, EventProductUpdated, sender.sent[1].event)
	update, ok := sender.sent[1].payload.(productUpdate)
	require.True(t, ok)
	assert.Equal(t, []string{"price"}, update.ChangedFields)

	body, err := EncodeEnvelope(update)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"changed_fields":["price"]`)
	assert.Contains(t, string(body), `"name":"Lamp"`)
}

func TestUpdateWithoutSnapshotIsFirstTrack(t *testing.T) {
	h, sender, _ := newHooks(t, activeSettings)

	h.ProductUpdated(context.Background(), hookProduct())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{}, sender.sent[0].payload.(productUpdate).ChangedFields)
}

func TestDeletePayloadIsMinimal(t *testing.T) {
	h, sender, _ := newHooks(t, activeSettings)
	p := hookProduct()
	h.ProductCreated(context.Background(), p)

	h.ProductDeleted(context.Background(), p.ID)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, EventProductDeleted, sender.sent[1].event)
	assert.Equal(t, productDeletion{ID: 4, DeletedAt: "2025-12-22T05:59:01Z"}, sender.sent[1].payload)

	// the snapshot is gone, so a re-created product is tracked from scratch
	h.ProductUpdated(context.Background(), p)
	require.Len(t, sender.sent, 3)
	assert.Empty(t, sender.sent[2].payload.(productUpdate).ChangedFields)
}

func TestFlagsGateEvents(t *testing.T) {
	st := activeSettings
	st.ProductWebhooks = false
	st.OrderWebhooks = false
	h, sender, _ := newHooks(t, st)

	h.ProductCreated(context.Background(), hookProduct())
	h.ProductUpdated(context.Background(), hookProduct())
	h.ProductDeleted(context.Background(), 4)
	h.OrderCreated(context.Background(), &models.Order{ID: 1})
	h.OrderUpdated(context.Background(), &models.Order{ID: 1})

	assert.Empty(t, sender.sent)
}

func TestOrderEvents(t *testing.T) {
	h, sender, _ := newHooks(t, activeSettings)
	order := &models.Order{ID: 9, Status: models.OrderStatusProcessing}

	h.OrderCreated(context.Background(), order)
	h.OrderUpdated(context.Background(), order)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, EventOrderCreated, sender.sent[0].event)
	assert.Equal(t, EventOrderUpdated, sender.sent[1].event)
	assert.Same(t, order, sender.sent[1].payload)
}

func TestChangeWhileInactiveIsSentAfterReactivation(t *testing.T) {
	cache := tracker.NewMemoryCache(time.Hour)
	t.Cleanup(cache.Close)
	st := &switchableSettings{st: activeSettings}
	sender := &recordingSender{}
	h := NewHooks(sender, tracker.New(nil, cache, nil, logger.Nop()), st, nil, logger.Nop())
	ctx := context.Background()

	p := hookProduct()
	h.ProductCreated(ctx, p)

	st.st.Active = false
	p.Price = "99"
	h.ProductUpdated(ctx, p)
	require.Len(t, sender.sent, 1, "nothing is sent while inactive")

	st.st.Active = true
	h.ProductUpdated(ctx, p)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, EventProductUpdated, sender.sent[1].event)
	assert.Equal(t, []string{"price"}, sender.sent[1].payload.(productUpdate).ChangedFields)
}

func TestNoSessionSkipsTracking(t *testing.T) {
	st := activeSettings
	st.AuthToken = ""
	h, sender, _ := newHooks(t, st)
	p := hookProduct()

	h.ProductCreated(context.Background(), p)
	h.ProductUpdated(context.Background(), p)
	assert.Empty(t, sender.sent)
}
