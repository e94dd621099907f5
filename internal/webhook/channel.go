package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/segmentio/kafka-go"
)

// Channel is a one-way outbound transport. Deliver reports transport
// failures; callers decide whether anyone hears about them.
type Channel interface {
	Deliver(ctx context.Context, msg Message) error
}

// HTTPChannel posts webhooks straight to the LazyChat endpoint.
type HTTPChannel struct {
	rest *resty.Client
	url  string
}

func NewHTTPChannel(url string, timeout time.Duration, httpClient *http.Client) *HTTPChannel {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	rest := resty.NewWithClient(httpClient)
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	return &HTTPChannel{rest: rest, url: url}
}

func (h *HTTPChannel) Deliver(ctx context.Context, msg Message) error {
	resp, err := h.rest.R().
		SetContext(ctx).
		SetHeaders(msg.Headers()).
		SetBody([]byte(msg.Body)).
		Post(h.url)
	if err != nil {
		return fmt.Errorf("webhook %s (%s): %w", msg.Event, msg.EventID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s (%s): http %d", msg.Event, msg.EventID, resp.StatusCode())
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel publishes webhooks to a topic; the relay worker delivers them
// over HTTP. Messages are keyed by shop so one shop's events stay in order on
// a partition.
type KafkaChannel struct {
	writer messageWriter
}

func NewKafkaChannel(brokers []string, topic string) *KafkaChannel {
	return &KafkaChannel{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (k *KafkaChannel) Deliver(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode webhook message: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ShopID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEvent, Value: []byte(msg.Event)},
			{Key: HeaderEventID, Value: []byte(msg.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish webhook %s (%s): %w", msg.Event, msg.EventID, err)
	}
	return nil
}

func (k *KafkaChannel) Close() error {
	return k.writer.Close()
}
