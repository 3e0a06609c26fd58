package library

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const purchaseCompletedType = "purchase_completed"

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer drops cached libraries when any process reports a completed
// purchase. It understands both storefront events and ledger outbox
// payloads since both carry the session and an event_type header.
type Consumer struct {
	reader messageReader
	cache  Cache
	logger *zap.Logger
}

func NewConsumer(cache Cache, logger *zap.Logger, topic, groupID string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, cache: cache, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeOne(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) consumeOne(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Error("error reading message", zap.Error(err))
		}
		return
	}

	if eventType(m) != purchaseCompletedType {
		return
	}

	var payload struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		c.logger.Error("error parsing message", zap.Error(err))
		return
	}
	if payload.Session == "" {
		c.logger.Warn("purchase message without session", zap.Int64("offset", m.Offset))
		return
	}

	if err := c.cache.Delete(ctx, payload.Session); err != nil {
		c.logger.Error("failed to invalidate library cache",
			zap.String("session", payload.Session), zap.Error(err))
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
