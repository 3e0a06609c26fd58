package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("a checkout is already being processed")
)

// UnexpectedError is a failure outside the per-item purchase loop, such as
// the cart write after purchases went through. Error() stays generic; Cause
// carries the detail.
type UnexpectedError struct {
	Cause error
}

func (e *UnexpectedError) Error() string {
	return "an unexpected error occurred while processing the purchase"
}

func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}
