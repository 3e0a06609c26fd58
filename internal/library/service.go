package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/purchase"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// serviceOwner keys the library fetched with the configured service token.
const serviceOwner = "service"

type Fetcher interface {
	UserPurchases(ctx context.Context) ([]domain.Purchase, error)
	HasPurchased(ctx context.Context, bookID string) (bool, error)
	GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error)
}

// Service is the session's view of the books it already owns. Each caller
// token gets its own cached library.
type Service struct {
	session string
	fetcher Fetcher
	cache   Cache
	sfg     singleflight.Group
	logger  *zap.Logger
}

func NewService(session string, fetcher Fetcher, cache Cache, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		session: session,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

func (s *Service) Get(ctx context.Context) ([]domain.Purchase, error) {
	owner := ownerOf(ctx)
	v, err, _ := s.sfg.Do(s.flightKey(owner), func() (interface{}, error) {
		purchases, err := s.cache.Get(ctx, s.session, owner)
		if err == nil {
			return purchases, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("library cache get failed", zap.Error(err))
		}

		purchases, err = s.fetcher.UserPurchases(ctx)
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, s.session, owner, purchases); err != nil {
				s.logger.Warn("library cache set failed", zap.Error(err))
			}
		}()
		return purchases, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Purchase), nil
}

// Search matches term against title, author and category, ignoring case.
// An empty term returns the whole library.
func (s *Service) Search(ctx context.Context, term string) ([]domain.Purchase, error) {
	purchases, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return purchases, nil
	}

	out := make([]domain.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if strings.Contains(strings.ToLower(p.Book.Title), term) ||
			strings.Contains(strings.ToLower(p.Book.Author), term) ||
			strings.Contains(strings.ToLower(p.Book.Category), term) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Refresh drops every cached library of the session and refetches the
// caller's. A fetch already in flight is not reused.
func (s *Service) Refresh(ctx context.Context) ([]domain.Purchase, error) {
	s.Invalidate(ctx)
	s.sfg.Forget(s.flightKey(ownerOf(ctx)))
	return s.Get(ctx)
}

func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, s.session); err != nil {
		s.logger.Warn("library cache invalidate failed", zap.Error(err))
	}
}

func (s *Service) HasPurchased(ctx context.Context, bookID string) (bool, error) {
	return s.fetcher.HasPurchased(ctx, bookID)
}

// Purchase returns the detail of one purchase, always fresh from the service.
func (s *Service) Purchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	return s.fetcher.GetPurchase(ctx, purchaseID)
}

// OnPurchaseCompleted refreshes the library after a checkout bought something.
func (s *Service) OnPurchaseCompleted(ctx context.Context, ev events.Event) error {
	if ev.Type != events.TypePurchaseCompleted {
		return nil
	}
	_, err := s.Refresh(ctx)
	return err
}

func (s *Service) flightKey(owner string) string {
	return s.session + ":" + owner
}

// ownerOf names the caller without putting its token in a cache key.
func ownerOf(ctx context.Context) string {
	token := purchase.TokenFromContext(ctx)
	if token == "" {
		return serviceOwner
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
