package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Handler func(ctx context.Context, ev Event) error

// Publisher is what producers of notifications depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Bus delivers events synchronously to subscribers in registration order.
// A failing handler is logged and does not stop delivery to the rest.
type Bus struct {
	mu       sync.RWMutex
	session  string
	handlers map[Type][]Handler
	all      []Handler
	logger   *zap.Logger
}

func NewBus(session string, logger *zap.Logger) *Bus {
	return &Bus{
		session:  session,
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Session == "" {
		ev.Session = b.session
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[ev.Type])+len(b.all))
	targets = append(targets, b.handlers[ev.Type]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", ev.Type.String()),
				zap.String("event_id", ev.ID),
				zap.Error(err))
		}
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
