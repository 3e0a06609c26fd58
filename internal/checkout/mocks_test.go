package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"go.uber.org/zap"
)

type memoryStore struct {
	m       sync.RWMutex
	data    []byte
	saveErr error
}

func (s *memoryStore) Load(context.Context) ([]byte, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	if s.data == nil {
		return nil, storage.ErrSnapshotNotFound
	}
	return s.data, nil
}

func (s *memoryStore) Save(_ context.Context, payload []byte) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), payload...)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) failSaves(err error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.saveErr = err
}

type purchaseBehavior struct {
	result domain.PurchaseResult
	err    error
	panic  any
}

type mockPurchaser struct {
	m         sync.RWMutex
	behaviors map[string]purchaseBehavior
	requests  []domain.PurchaseRequest
	onCall    func()
}

func newMockPurchaser() *mockPurchaser {
	return &mockPurchaser{behaviors: map[string]purchaseBehavior{}}
}

func (p *mockPurchaser) succeed(bookID string) {
	p.behaviors[bookID] = purchaseBehavior{result: domain.PurchaseResult{Success: true}}
}

func (p *mockPurchaser) decline(bookID, message string) {
	p.behaviors[bookID] = purchaseBehavior{result: domain.PurchaseResult{Success: false, Message: message}}
}

func (p *mockPurchaser) fail(bookID string, err error) {
	p.behaviors[bookID] = purchaseBehavior{err: err}
}

func (p *mockPurchaser) CreatePurchase(_ context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	p.m.Lock()
	p.requests = append(p.requests, req)
	b, ok := p.behaviors[req.BookID]
	onCall := p.onCall
	p.m.Unlock()

	if onCall != nil {
		onCall()
	}
	if !ok {
		return domain.PurchaseResult{}, errors.New("no behavior configured")
	}
	if b.panic != nil {
		panic(b.panic)
	}
	return b.result, b.err
}

func (p *mockPurchaser) calls() []domain.PurchaseRequest {
	p.m.RLock()
	defer p.m.RUnlock()
	return append([]domain.PurchaseRequest(nil), p.requests...)
}

type recordingPublisher struct {
	m      sync.RWMutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	r.m.Lock()
	defer r.m.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) ofType(t events.Type) []events.Event {
	r.m.RLock()
	defer r.m.RUnlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type mockRecorder struct {
	m    sync.RWMutex
	runs []domain.CheckoutRun
	err  error
}

func (r *mockRecorder) RecordRun(_ context.Context, run domain.CheckoutRun) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

type fixture struct {
	store     *memoryStore
	cart      *cart.Manager
	purchaser *mockPurchaser
	events    *recordingPublisher
	recorder  *mockRecorder
	sut       *Orchestrator
}

func newFixture(books ...domain.Book) *fixture {
	f := &fixture{
		store:     &memoryStore{},
		purchaser: newMockPurchaser(),
		events:    &recordingPublisher{},
		recorder:  &mockRecorder{},
	}
	ctx := context.Background()
	f.cart = cart.NewManager(ctx, f.store, events.Nop{}, nil, zap.NewNop())
	for _, b := range books {
		if err := f.cart.AddItem(ctx, b); err != nil {
			panic(err)
		}
	}
	f.sut = NewOrchestrator("test-session", f.cart, f.purchaser, f.events, f.recorder, nil, zap.NewNop())
	return f
}

func cardPayment() domain.Payment {
	return domain.Payment{
		Method: domain.PaymentMethodCard,
		Card:   &domain.CardDetails{Number: "4111 1111 1111 1111", Expiry: "12/29", CVV: "123", HolderName: "Ada"},
	}
}
