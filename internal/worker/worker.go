package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"lazychat/internal/config"
	"lazychat/internal/logger"
	"lazychat/internal/webhook"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Worker relays webhooks queued on Kafka to LazyChat over HTTP. Delivery is
// attempted once; failures are logged and the message is committed anyway.
type Worker struct {
	config  *config.Config
	logger  *logger.Logger
	reader  messageReader
	channel webhook.Channel
	timeout time.Duration
}

func New(cfg *config.Config, channel webhook.Channel, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        strings.Split(cfg.KafkaBrokers, ","),
		GroupID:        "lazychat-webhook-relay",
		Topic:          cfg.KafkaTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return newWorker(cfg, reader, channel, logger)
}

func newWorker(cfg *config.Config, reader messageReader, channel webhook.Channel, logger *logger.Logger) *Worker {
	return &Worker{
		config:  cfg,
		logger:  logger,
		reader:  reader,
		channel: channel,
		timeout: cfg.TelemetryTimeout,
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Webhook relay started, topic %s", w.config.KafkaTopic)

	for {
		message, err := w.reader.ReadMessage(ctx)
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			w.logger.Info("Webhook relay stopped")
			return
		}
		if err != nil {
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		msg, err := webhook.DecodeMessage(message.Value)
		if err != nil {
			w.logger.Error("Skipping malformed webhook at offset %d: %v", message.Offset, err)
			continue
		}

		w.relay(ctx, msg)
	}
}

func (w *Worker) relay(ctx context.Context, msg webhook.Message) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.channel.Deliver(ctx, msg); err != nil {
		w.logger.Error("Webhook relay failed: %v", err)
		return
	}
	w.logger.Debug("Relayed %s %s for shop %s", msg.Event, msg.EventID, msg.ShopID)
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Warn("Failed to close kafka reader: %v", err)
	}
}
