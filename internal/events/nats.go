package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "storefront.event."

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

type NATSSink struct {
	conn natsPublisher
}

func NewNATSSink(conn *nats.Conn) *NATSSink {
	return &NATSSink{conn: conn}
}

func Subject(t Type) string {
	return subjectPrefix + string(t)
}

func (s *NATSSink) Handle(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	if err := s.conn.Publish(Subject(ev.Type), payload); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}
	return nil
}
