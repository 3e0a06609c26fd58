package http

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/purchase"
)

type MockCart struct {
	m     sync.RWMutex
	items []domain.CartItem
	err   error
}

func (c *MockCart) AddItem(_ context.Context, book domain.Book) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return c.err
	}
	for i := range c.items {
		if c.items[i].ID == book.ID {
			c.items[i].Quantity++
			return nil
		}
	}
	c.items = append(c.items, domain.NewCartItem(book))
	return nil
}

func (c *MockCart) RemoveItem(_ context.Context, id string) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return c.err
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return nil
}

func (c *MockCart) UpdateQuantity(_ context.Context, id string, quantity int) error {
	c.m.Lock()
	defer c.m.Unlock()
	if quantity < 1 {
		return nil
	}
	if c.err != nil {
		return c.err
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = quantity
		}
	}
	return nil
}

func (c *MockCart) Clear(context.Context) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return c.err
	}
	c.items = nil
	return nil
}

func (c *MockCart) Items() []domain.CartItem {
	c.m.RLock()
	defer c.m.RUnlock()
	return append([]domain.CartItem(nil), c.items...)
}

func (c *MockCart) TotalItemCount() int {
	return domain.TotalItemCount(c.Items())
}

func (c *MockCart) TotalPrice() float64 {
	return domain.TotalPrice(c.Items())
}

type MockCheckouter struct {
	m          sync.RWMutex
	outcome    *domain.CheckoutOutcome
	err        error
	processing bool
	payments   []domain.Payment
}

func (c *MockCheckouter) Checkout(_ context.Context, payment domain.Payment) (*domain.CheckoutOutcome, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.payments = append(c.payments, payment)
	return c.outcome, c.err
}

func (c *MockCheckouter) Processing() bool {
	c.m.RLock()
	defer c.m.RUnlock()
	return c.processing
}

type MockLibrary struct {
	m         sync.RWMutex
	purchases []domain.Purchase
	owned     map[string]bool
	details   map[string]*domain.Purchase
	err       error
	terms     []string
	tokens    []string
}

func (l *MockLibrary) Search(ctx context.Context, term string) ([]domain.Purchase, error) {
	l.m.Lock()
	defer l.m.Unlock()
	l.terms = append(l.terms, term)
	l.tokens = append(l.tokens, purchase.TokenFromContext(ctx))
	if l.err != nil {
		return nil, l.err
	}
	return l.purchases, nil
}

func (l *MockLibrary) HasPurchased(ctx context.Context, bookID string) (bool, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.owned[bookID], nil
}

func (l *MockLibrary) Purchase(_ context.Context, purchaseID string) (*domain.Purchase, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p, ok := l.details[purchaseID]
	if !ok {
		return nil, &purchase.APIError{StatusCode: 404, Message: "purchase not found"}
	}
	return p, nil
}

type MockRunLister struct {
	m       sync.RWMutex
	runs    []ledger.RunSummary
	session string
	limit   int
}

func (l *MockRunLister) ListRuns(_ context.Context, session string, limit int) ([]ledger.RunSummary, error) {
	l.m.Lock()
	defer l.m.Unlock()
	l.session = session
	l.limit = limit
	return l.runs, nil
}
