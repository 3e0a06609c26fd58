package checkout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Cart interface {
	Items() []domain.CartItem
	RemoveItems(ctx context.Context, ids []string) error
}

type Purchaser interface {
	CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error)
}

type Recorder interface {
	RecordRun(ctx context.Context, run domain.CheckoutRun) error
}

type NopRecorder struct{}

func (NopRecorder) RecordRun(context.Context, domain.CheckoutRun) error { return nil }

type Orchestrator struct {
	session    string
	cart       Cart
	purchaser  Purchaser
	events     events.Publisher
	recorder   Recorder
	metrics    *metrics.Metrics
	logger     *zap.Logger
	processing atomic.Bool
}

func NewOrchestrator(
	session string,
	cart Cart,
	purchaser Purchaser,
	publisher events.Publisher,
	recorder Recorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Orchestrator{
		session:   session,
		cart:      cart,
		purchaser: purchaser,
		events:    publisher,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
	}
}

// Processing reports whether a checkout run is in flight.
func (o *Orchestrator) Processing() bool {
	return o.processing.Load()
}

// Checkout buys every cart item one at a time, in cart order, with the given
// payment. Items that were bought leave the cart; the rest stay untouched.
// Once started, a run is not cancelled by ctx.
func (o *Orchestrator) Checkout(ctx context.Context, payment domain.Payment) (outcome *domain.CheckoutOutcome, err error) {
	if !o.processing.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInProgress
	}
	defer o.processing.Store(false)

	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = o.unexpected(ctx, fmt.Errorf("checkout panicked: %v", r))
		}
	}()

	items := o.cart.Items()
	if len(items) == 0 {
		o.events.Publish(ctx, events.New(events.TypeEmptyCart, events.LevelWarning, "Your cart is empty"))
		return nil, ErrEmptyCart
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.logger.With(zap.String("run_id", runID), zap.String("payment_method", payment.Method.String()))
	log.Info("Checkout started", zap.Int("items", len(items)))

	attempts := make([]domain.PurchaseAttemptResult, 0, len(items))
	for _, item := range items {
		attempts = append(attempts, o.attempt(ctx, log, item, payment))
	}
	outcome = domain.NewCheckoutOutcome(runID, attempts)

	var persistErr error
	if outcome.AnySucceeded() {
		persistErr = o.cart.RemoveItems(ctx, outcome.SucceededIDs())
	}

	o.record(ctx, log, payment, outcome)
	o.metrics.CheckoutRun(outcome.Kind.String())

	if outcome.AnySucceeded() {
		// the purchases happened even if the cart write did not
		completed := events.New(events.TypePurchaseCompleted, events.LevelInfo, "New books are available in your library")
		completed.RunID = runID
		completed.Succeeded = len(outcome.Succeeded)
		o.events.Publish(ctx, completed)
	}

	if persistErr != nil {
		return nil, o.unexpected(ctx, persistErr)
	}

	o.events.Publish(ctx, outcomeEvent(outcome))
	log.Info("Checkout finished",
		zap.String("kind", outcome.Kind.String()),
		zap.Int("succeeded", len(outcome.Succeeded)),
		zap.Int("failed", len(outcome.Failed)))

	return outcome, nil
}

// attempt never returns an error: whatever goes wrong for one item is folded
// into its result so the loop can move on.
func (o *Orchestrator) attempt(ctx context.Context, log *zap.Logger, item domain.CartItem, payment domain.Payment) (res domain.PurchaseAttemptResult) {
	res.Item = item
	defer func() {
		if r := recover(); r != nil {
			res.Succeeded = false
			res.ErrorMessage = fmt.Sprintf("error processing the purchase: %v", r)
		}
		o.metrics.PurchaseAttempt(res.Succeeded)
		if !res.Succeeded {
			log.Warn("Purchase attempt failed",
				zap.String("book_id", item.ID),
				zap.String("error", res.ErrorMessage))
		}
	}()

	result, err := o.purchaser.CreatePurchase(ctx, domain.NewPurchaseRequest(item.ID, payment))
	switch {
	case err != nil:
		res.ErrorMessage = err.Error()
		if res.ErrorMessage == "" {
			res.ErrorMessage = "error processing the purchase"
		}
	case !result.Success:
		res.ErrorMessage = result.Message
		if res.ErrorMessage == "" {
			res.ErrorMessage = "unknown error"
		}
	default:
		res.Succeeded = true
	}
	return res
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, payment domain.Payment, outcome *domain.CheckoutOutcome) {
	run := domain.CheckoutRun{
		Session:       o.session,
		PaymentMethod: payment.Method,
		Outcome:       outcome,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.recorder.RecordRun(ctx, run); err != nil {
		log.Error("Failed to record checkout run", zap.Error(err))
	}
}

func (o *Orchestrator) unexpected(ctx context.Context, cause error) error {
	o.logger.Error("Checkout failed unexpectedly", zap.Error(cause))
	err := &UnexpectedError{Cause: cause}
	o.events.Publish(ctx, events.New(events.TypeCheckoutError, events.LevelError, err.Error()))
	return err
}

func outcomeEvent(outcome *domain.CheckoutOutcome) events.Event {
	level := events.LevelInfo
	switch outcome.Kind {
	case domain.OutcomePartial:
		level = events.LevelWarning
	case domain.OutcomeFailure:
		level = events.LevelError
	}

	ev := events.New(events.TypeCheckoutOutcome, level, outcome.Message())
	ev.RunID = outcome.RunID
	ev.Outcome = outcome.Kind.String()
	ev.Succeeded = len(outcome.Succeeded)
	ev.Failed = len(outcome.Failed)
	for _, f := range outcome.Failed {
		ev.Failures = append(ev.Failures, events.ItemFailure{
			BookID: f.Item.ID,
			Title:  f.Item.Title,
			Error:  f.ErrorMessage,
		})
	}
	return ev
}
