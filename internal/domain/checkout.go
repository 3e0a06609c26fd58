package domain

import (
	"fmt"
	"strings"
	"time"
)

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomePartial OutcomeKind = "partial"
	OutcomeFailure OutcomeKind = "failure"
)

// String representation (for logging)
func (k OutcomeKind) String() string {
	return string(k)
}

type PurchaseAttemptResult struct {
	Item         CartItem
	Succeeded    bool
	ErrorMessage string
}

// CheckoutOutcome aggregates every attempt of one checkout run.
type CheckoutOutcome struct {
	RunID     string
	Kind      OutcomeKind
	Attempts  []PurchaseAttemptResult // cart order
	Succeeded []PurchaseAttemptResult
	Failed    []PurchaseAttemptResult
}

// NewCheckoutOutcome partitions attempts, keeping cart order inside each set.
// Callers never pass an empty slice: an empty cart is rejected before any attempt.
func NewCheckoutOutcome(runID string, attempts []PurchaseAttemptResult) *CheckoutOutcome {
	o := &CheckoutOutcome{RunID: runID, Attempts: attempts}
	for _, a := range attempts {
		if a.Succeeded {
			o.Succeeded = append(o.Succeeded, a)
		} else {
			o.Failed = append(o.Failed, a)
		}
	}

	switch {
	case len(o.Failed) == 0:
		o.Kind = OutcomeSuccess
	case len(o.Succeeded) == 0:
		o.Kind = OutcomeFailure
	default:
		o.Kind = OutcomePartial
	}
	return o
}

func (o *CheckoutOutcome) SucceededIDs() []string {
	ids := make([]string, 0, len(o.Succeeded))
	for _, a := range o.Succeeded {
		ids = append(ids, a.Item.ID)
	}
	return ids
}

func (o *CheckoutOutcome) AnySucceeded() bool {
	return len(o.Succeeded) > 0
}

// CloseView tells the caller the checkout screen has nothing left to show.
func (o *CheckoutOutcome) CloseView() bool {
	return o.Kind == OutcomeSuccess
}

func (o *CheckoutOutcome) Message() string {
	switch o.Kind {
	case OutcomeSuccess:
		return fmt.Sprintf("purchase completed: %d book(s) added to your library", len(o.Succeeded))
	case OutcomePartial:
		return fmt.Sprintf("partial success: %d succeeded, %d failed", len(o.Succeeded), len(o.Failed))
	default:
		lines := make([]string, 0, len(o.Failed))
		for _, f := range o.Failed {
			lines = append(lines, fmt.Sprintf("• %s: %s", f.Item.Title, f.ErrorMessage))
		}
		return "purchase failed:\n" + strings.Join(lines, "\n")
	}
}

// CheckoutRun is the record kept of one finished checkout.
type CheckoutRun struct {
	Session       string
	PaymentMethod PaymentMethod
	Outcome       *CheckoutOutcome
	CreatedAt     time.Time
}

// SucceededAmount is what was actually charged during the run.
func (r CheckoutRun) SucceededAmount() float64 {
	total := 0.0
	for _, a := range r.Outcome.Succeeded {
		total += a.Item.Subtotal()
	}
	return total
}
