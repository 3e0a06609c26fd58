package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"go.uber.org/zap"
)

var ErrPersist = errors.New("failed to persist cart")

// Manager owns the session cart. It is the only writer of its snapshot slot.
type Manager struct {
	mu       sync.Mutex
	items    []domain.CartItem
	store    storage.SnapshotStore
	notifier events.Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewManager seeds the cart from the store. Missing or unreadable snapshots
// give an empty cart; construction never fails.
func NewManager(ctx context.Context, store storage.SnapshotStore, notifier events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Manager {
	mgr := &Manager{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
	mgr.items = mgr.load(ctx)
	return mgr
}

func (m *Manager) load(ctx context.Context) []domain.CartItem {
	data, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			m.logger.Warn("Failed to read cart snapshot, starting empty", zap.Error(err))
		}
		return nil
	}

	var items []domain.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		m.logger.Warn("Malformed cart snapshot, starting empty", zap.Error(err))
		return nil
	}

	// drop entries that could never have been written by this manager
	clean := make([]domain.CartItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID == "" || item.Quantity < 1 || seen[item.ID] {
			m.logger.Warn("Skipping invalid cart snapshot entry", zap.String("book_id", item.ID))
			continue
		}
		seen[item.ID] = true
		clean = append(clean, item)
	}
	return clean
}

// commit persists next and only then makes it the current cart.
// Callers hold m.mu.
func (m *Manager) commit(ctx context.Context, op string, next []domain.CartItem) error {
	payload, err := json.Marshal(nonNil(next))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := m.store.Save(ctx, payload); err != nil {
		m.logger.Error("Failed to persist cart", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	m.items = next
	m.metrics.CartMutation(op)
	return nil
}

func (m *Manager) AddItem(ctx context.Context, book domain.Book) error {
	if err := book.ValidatePrices(); err != nil {
		return err
	}

	m.mu.Lock()
	next := slices.Clone(m.items)
	if i := indexOf(next, book.ID); i >= 0 {
		next[i].Quantity++
	} else {
		next = append(next, domain.NewCartItem(book))
	}
	err := m.commit(ctx, "add", next)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	ev := events.New(events.TypeItemAdded, events.LevelInfo, fmt.Sprintf("%s has been added to the cart", book.Title))
	ev.BookID = book.ID
	ev.Title = book.Title
	m.notifier.Publish(ctx, ev)
	return nil
}

func (m *Manager) RemoveItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(m.items), func(item domain.CartItem) bool {
		return item.ID == id
	})
	return m.commit(ctx, "remove", next)
}

// UpdateQuantity sets the quantity exactly. Values below 1 are ignored;
// removal goes through RemoveItem.
func (m *Manager) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.items, id)
	if i < 0 {
		return nil
	}
	next := slices.Clone(m.items)
	next[i].Quantity = quantity
	return m.commit(ctx, "update", next)
}

func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.commit(ctx, "clear", nil)
}

// RemoveItems drops every listed id with a single snapshot write.
func (m *Manager) RemoveItems(ctx context.Context, ids []string) error {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := slices.DeleteFunc(slices.Clone(m.items), func(item domain.CartItem) bool {
		return remove[item.ID]
	})
	return m.commit(ctx, "remove", next)
}

// Items returns a copy of the cart in insertion order.
func (m *Manager) Items() []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

func (m *Manager) TotalItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.TotalItemCount(m.items)
}

func (m *Manager) TotalPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.TotalPrice(m.items)
}

func indexOf(items []domain.CartItem, id string) int {
	return slices.IndexFunc(items, func(item domain.CartItem) bool {
		return item.ID == id
	})
}

func nonNil(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return []domain.CartItem{}
	}
	return items
}
