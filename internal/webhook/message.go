package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
)

const (
	HeaderEvent         = "X-Webhook-Event"
	HeaderTopic         = "X-Woocommerce-Topic"
	HeaderEventID       = "X-Woocommerce-Event-Id"
	HeaderShopID        = "X-Lazychat-Shop-Id"
	HeaderPluginVersion = "X-Plugin-Version"
)

// Envelope is the JSON body of every webhook.
type Envelope struct {
	Payload interface{} `json:"payload"`
}

// Message is one webhook ready for delivery. It carries everything a channel
// needs so it can cross a queue boundary unchanged.
type Message struct {
	Event         string          `json:"event"`
	EventID       string          `json:"event_id"`
	ShopID        string          `json:"shop_id"`
	Token         string          `json:"token"`
	PluginVersion string          `json:"plugin_version"`
	Body          json.RawMessage `json:"body"`
}

func (m Message) Headers() map[string]string {
	return map[string]string{
		"Authorization":     "Bearer " + m.Token,
		"Content-Type":      "application/json",
		HeaderEvent:         m.Event,
		HeaderTopic:         m.Event,
		HeaderEventID:       m.EventID,
		HeaderShopID:        m.ShopID,
		HeaderPluginVersion: m.PluginVersion,
	}
}

// NewEventID returns a 10 character hex correlation ID.
func NewEventID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:10]
}

// EncodeEnvelope wraps payload and serialises it without HTML escaping, so
// URLs and non-ASCII text reach the receiver untouched.
func EncodeEnvelope(payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Envelope{Payload: payload}); err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeMessage reads a Message published by KafkaChannel.
func DecodeMessage(value []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode webhook message: %w", err)
	}
	if msg.Event == "" || len(msg.Body) == 0 {
		return Message{}, fmt.Errorf("webhook message missing event or body")
	}
	return msg, nil
}
