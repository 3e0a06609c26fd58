package cart

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	m       sync.RWMutex
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (s *mockStore) Load(context.Context) ([]byte, error) {
	s.m.RLock()
	defer s.m.RUnlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, storage.ErrSnapshotNotFound
	}
	return s.data, nil
}

func (s *mockStore) Save(_ context.Context, payload []byte) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), payload...)
	s.saves++
	return nil
}

func (s *mockStore) Close() error { return nil }

func (s *mockStore) setSaveErr(err error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.saveErr = err
}

type recordingNotifier struct {
	m      sync.RWMutex
	events []events.Event
}

func (n *recordingNotifier) Publish(_ context.Context, ev events.Event) {
	n.m.Lock()
	defer n.m.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) ofType(t events.Type) []events.Event {
	n.m.RLock()
	defer n.m.RUnlock()
	var out []events.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var (
	bookA = domain.Book{ID: "a", Title: "Dune", Author: "Herbert", FinalPrice: 9.99, ListPrice: 12.5}
	bookB = domain.Book{ID: "b", Title: "Emma", Author: "Austen", FinalPrice: 4.25, ListPrice: 4.25}
	bookC = domain.Book{ID: "c", Title: "Ulysses", Author: "Joyce", FinalPrice: 0.1, ListPrice: 3}
)

func newTestManager(t *testing.T, store storage.SnapshotStore) (*Manager, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return NewManager(context.Background(), store, n, nil, zap.NewNop()), n
}

func TestAddItem_NewItem(t *testing.T) {
	store := &mockStore{}
	sut, notifier := newTestManager(t, store)

	err := sut.AddItem(context.Background(), bookA)
	require.NoError(t, err)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, domain.CartItem{
		ID: "a", Title: "Dune", Author: "Herbert", FinalPrice: 9.99, ListPrice: 12.5, Quantity: 1,
	}, items[0])
	assert.Equal(t, 1, store.saves)

	added := notifier.ofType(events.TypeItemAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "a", added[0].BookID)
	assert.Contains(t, added[0].Message, "Dune")
}

func TestAddItem_SameBookTwiceMerges(t *testing.T) {
	sut, notifier := newTestManager(t, &mockStore{})
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, bookA))
	require.NoError(t, sut.AddItem(ctx, bookA))

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Len(t, notifier.ofType(events.TypeItemAdded), 2)
}

func TestAddItem_PriceIsSnapshotted(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})
	ctx := context.Background()

	require.NoError(t, sut.AddItem(ctx, bookA))
	repriced := bookA
	repriced.FinalPrice = 1
	require.NoError(t, sut.AddItem(ctx, repriced))

	assert.InDelta(t, 2*9.99, sut.TotalPrice(), 1e-9)
}

func TestAddItem_AtMostOneLinePerBook(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})
	ctx := context.Background()
	books := []domain.Book{bookA, bookB, bookC}
	want := map[string]int{}
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		b := books[rnd.Intn(len(books))]
		require.NoError(t, sut.AddItem(ctx, b))
		want[b.ID]++
	}

	items := sut.Items()
	got := map[string]int{}
	for _, item := range items {
		_, dup := got[item.ID]
		assert.False(t, dup, "duplicate entry for %s", item.ID)
		got[item.ID] = item.Quantity
	}
	assert.Equal(t, want, got)
}

func TestAddItem_PersistError(t *testing.T) {
	store := &mockStore{}
	sut, notifier := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))

	store.setSaveErr(errors.New("disk full"))
	err := sut.AddItem(ctx, bookB)

	require.ErrorIs(t, err, ErrPersist)
	require.ErrorContains(t, err, "disk full")
	assert.Len(t, sut.Items(), 1, "in-memory cart is unchanged when the write fails")
	assert.Len(t, notifier.ofType(events.TypeItemAdded), 1)
}

func TestRemoveItem(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))
	require.NoError(t, sut.AddItem(ctx, bookB))

	require.NoError(t, sut.RemoveItem(ctx, "a"))

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	assert.JSONEq(t, `[{"id":"b","title":"Emma","author":"Austen","coverImage":"","finalPrice":4.25,"listPrice":4.25,"quantity":1}]`, string(store.data))
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))

	err := sut.RemoveItem(ctx, "missing")

	require.NoError(t, err)
	assert.Len(t, sut.Items(), 1)
}

func TestUpdateQuantity(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))

	require.NoError(t, sut.UpdateQuantity(ctx, "a", 5))

	assert.Equal(t, 5, sut.Items()[0].Quantity)
	assert.Equal(t, 5, sut.TotalItemCount())
}

func TestUpdateQuantity_BelowOneIsIgnored(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))
	require.NoError(t, sut.UpdateQuantity(ctx, "a", 3))
	savesBefore := store.saves

	for _, q := range []int{0, -1, -100} {
		require.NoError(t, sut.UpdateQuantity(ctx, "a", q))
	}

	assert.Equal(t, 3, sut.Items()[0].Quantity)
	assert.Equal(t, savesBefore, store.saves)
}

func TestUpdateQuantity_UnknownID(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))
	savesBefore := store.saves

	require.NoError(t, sut.UpdateQuantity(ctx, "missing", 4))

	assert.Equal(t, 1, sut.TotalItemCount())
	assert.Equal(t, savesBefore, store.saves, "unknown id must not rewrite the snapshot")
}

func TestAddItem_RejectsListPriceBelowFinalPrice(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)

	err := sut.AddItem(context.Background(), domain.Book{ID: "x", Title: "X", FinalPrice: 10, ListPrice: 3})

	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	assert.Empty(t, sut.Items())
	assert.Equal(t, 0, store.saves)
}

func TestAddItem_MissingListPriceDefaultsToFinalPrice(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})

	require.NoError(t, sut.AddItem(context.Background(), domain.Book{ID: "x", Title: "X", FinalPrice: 7}))

	assert.Equal(t, 7.0, sut.Items()[0].ListPrice)
}

func TestClear(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))

	require.NoError(t, sut.Clear(ctx))

	assert.Empty(t, sut.Items())
	assert.Equal(t, `[]`, string(store.data))
	assert.Equal(t, 0, sut.TotalItemCount())
	assert.Equal(t, 0.0, sut.TotalPrice())
}

func TestRemoveItems_SingleWrite(t *testing.T) {
	store := &mockStore{}
	sut, _ := newTestManager(t, store)
	ctx := context.Background()
	require.NoError(t, sut.AddItem(ctx, bookA))
	require.NoError(t, sut.AddItem(ctx, bookB))
	require.NoError(t, sut.AddItem(ctx, bookC))
	savesBefore := store.saves

	require.NoError(t, sut.RemoveItems(ctx, []string{"a", "c"}))

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, savesBefore+1, store.saves)
}

func TestTotals_IndependentOfOrder(t *testing.T) {
	ctx := context.Background()
	first, _ := newTestManager(t, &mockStore{})
	second, _ := newTestManager(t, &mockStore{})

	for _, b := range []domain.Book{bookA, bookB, bookB, bookC} {
		require.NoError(t, first.AddItem(ctx, b))
	}
	for _, b := range []domain.Book{bookC, bookB, bookA, bookB} {
		require.NoError(t, second.AddItem(ctx, b))
	}

	assert.Equal(t, 4, first.TotalItemCount())
	assert.Equal(t, first.TotalItemCount(), second.TotalItemCount())
	assert.InDelta(t, 9.99+2*4.25+0.1, first.TotalPrice(), 1e-9)
	assert.InDelta(t, first.TotalPrice(), second.TotalPrice(), 1e-9)
}

func TestItems_ReturnsCopy(t *testing.T) {
	sut, _ := newTestManager(t, &mockStore{})
	require.NoError(t, sut.AddItem(context.Background(), bookA))

	items := sut.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, sut.Items()[0].Quantity)
}

func TestNewManager_RoundTrip(t *testing.T) {
	store := &mockStore{}
	ctx := context.Background()
	first, _ := newTestManager(t, store)
	require.NoError(t, first.AddItem(ctx, bookA))
	require.NoError(t, first.AddItem(ctx, bookB))
	require.NoError(t, first.UpdateQuantity(ctx, "b", 3))

	reloaded, _ := newTestManager(t, store)

	assert.Equal(t, first.Items(), reloaded.Items())
	assert.Equal(t, first.TotalPrice(), reloaded.TotalPrice())
}

func TestNewManager_RoundTripSQLite(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:", "shoppingCart")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations("../storage/migrations"))
	defer store.Close()
	ctx := context.Background()

	first, _ := newTestManager(t, store)
	require.NoError(t, first.AddItem(ctx, bookC))
	require.NoError(t, first.AddItem(ctx, bookA))

	reloaded, _ := newTestManager(t, store)
	assert.Equal(t, first.Items(), reloaded.Items())
}

func TestNewManager_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name  string
		store *mockStore
	}{
		{"missing", &mockStore{}},
		{"malformed", &mockStore{data: []byte(`{not json`)}},
		{"wrong shape", &mockStore{data: []byte(`{"id":"a"}`)}},
		{"read error", &mockStore{loadErr: errors.New("io error")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sut *Manager
			require.NotPanics(t, func() {
				sut, _ = newTestManager(t, tt.store)
			})
			assert.Empty(t, sut.Items())
			assert.Equal(t, 0, sut.TotalItemCount())
		})
	}
}

func TestNewManager_SkipsInvalidEntries(t *testing.T) {
	store := &mockStore{data: []byte(`[
		{"id":"a","title":"Dune","finalPrice":2,"quantity":2},
		{"id":"","title":"no id","quantity":1},
		{"id":"b","title":"zero","quantity":0},
		{"id":"a","title":"dup","quantity":5}
	]`)}

	sut, _ := newTestManager(t, store)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Title)
	assert.Equal(t, 2, items[0].Quantity)
}
