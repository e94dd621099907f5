package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lazychat/internal/clock"
	"lazychat/internal/config"
	"lazychat/internal/logger"
	"lazychat/internal/webhook"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (r *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *stubReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func encoded(t *testing.T, msg webhook.Message) kafka.Message {
	t.Helper()
	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(msg.ShopID), Value: value}
}

func TestRelayDeliversQueuedWebhooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		events = append(events, r.Header.Get(webhook.HeaderEvent))
		mu.Unlock()
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "42", r.Header.Get(webhook.HeaderShopID))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	body, err := webhook.EncodeEnvelope(map[string]interface{}{"id": 7})
	require.NoError(t, err)
	reader := &stubReader{
		messages: []kafka.Message{
			encoded(t, webhook.Message{Event: webhook.EventProductCreated, EventID: "abcdef0123", ShopID: "42", Token: "tok", Body: body}),
			{Value: []byte("garbage")},
			encoded(t, webhook.Message{Event: webhook.EventProductDeleted, EventID: "0123abcdef", ShopID: "42", Token: "tok", Body: body}),
		},
		errs: []error{errors.New("broker unavailable")},
	}

	cfg := &config.Config{KafkaTopic: "lazychat-webhooks", TelemetryTimeout: time.Second}
	w := newWorker(cfg, reader, webhook.NewHTTPChannel(srv.URL, time.Second, nil), logger.Nop())
	w.Run(context.Background())
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{webhook.EventProductCreated, webhook.EventProductDeleted}, events)
	assert.True(t, reader.closed)
}

type failingChannel struct{ calls int }

func (f *failingChannel) Deliver(context.Context, webhook.Message) error {
	f.calls++
	return errors.New("connection refused")
}

func TestRelayDoesNotRetry(t *testing.T) {
	body, err := webhook.EncodeEnvelope(map[string]interface{}{"id": 1})
	require.NoError(t, err)
	reader := &stubReader{messages: []kafka.Message{
		encoded(t, webhook.Message{Event: webhook.EventOrderCreated, EventID: "aaaaaaaaaa", ShopID: "1", Token: "t", Body: body}),
	}}
	ch := &failingChannel{}

	newWorker(&config.Config{}, reader, ch, logger.Nop()).Run(context.Background())
	assert.Equal(t, 1, ch.calls)
}

func TestRelayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &stubReader{errs: []error{context.Canceled}}
	ch := &failingChannel{}

	newWorker(&config.Config{}, reader, ch, logger.Nop()).Run(ctx)
	assert.Zero(t, ch.calls)
}

type countingPruner struct {
	calls int
	n     int64
	err   error
}

func (p *countingPruner) Prune(context.Context) (int64, error) {
	p.calls++
	return p.n, p.err
}

func TestJanitorSweeps(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	snapshots := &countingPruner{n: 3}
	events := &countingPruner{err: errors.New("locked")}

	j := NewJanitor(time.Hour, clk, logger.Nop())
	j.Register("product_snapshots", snapshots)
	j.Register("event_logs", events)

	j.Start()
	assert.Equal(t, 1, snapshots.calls)
	assert.Equal(t, 1, events.calls)

	clk.Advance(time.Hour)
	clk.Advance(time.Hour)
	assert.Equal(t, 3, snapshots.calls)
	assert.Equal(t, 3, events.calls, "a failing pruner keeps being scheduled")

	removed := j.Sweep(context.Background())
	assert.Equal(t, map[string]int64{"product_snapshots": 3}, removed)

	j.Stop()
	clk.Advance(5 * time.Hour)
	assert.Equal(t, 4, snapshots.calls)
	assert.Zero(t, clk.Pending())
}
