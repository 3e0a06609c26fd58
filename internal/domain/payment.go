package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

var ErrInvalidPayment = errors.New("invalid payment details")

var (
	cardPattern   = regexp.MustCompile(`^\d+$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

type CardDetails struct {
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holderName"`
}

type PayPalDetails struct {
	Email string `json:"email"`
}

type BankTransferDetails struct {
	ReferenceCode string `json:"referenceCode"`
}

// Payment is the method picked at checkout plus whatever detail blocks the
// caller filled in. Only the block matching Method is ever sent.
type Payment struct {
	Method       PaymentMethod        `json:"paymentMethod"`
	Card         *CardDetails         `json:"card,omitempty"`
	PayPal       *PayPalDetails       `json:"paypal,omitempty"`
	BankTransfer *BankTransferDetails `json:"bankTransfer,omitempty"`
}

func (p Payment) Validate() error {
	switch p.Method {
	case PaymentMethodCard:
		if p.Card == nil {
			return fmt.Errorf("%w: card details are required", ErrInvalidPayment)
		}
		number := stripSpaces(p.Card.Number)
		if number == "" {
			return fmt.Errorf("%w: card number is required", ErrInvalidPayment)
		}
		if !cardPattern.MatchString(number) {
			return fmt.Errorf("%w: card number must contain only digits", ErrInvalidPayment)
		}
		if !expiryPattern.MatchString(p.Card.Expiry) {
			return fmt.Errorf("%w: expiry must be MM/YY", ErrInvalidPayment)
		}
		if !cvvPattern.MatchString(p.Card.CVV) {
			return fmt.Errorf("%w: cvv must be 3 or 4 digits", ErrInvalidPayment)
		}
		if strings.TrimSpace(p.Card.HolderName) == "" {
			return fmt.Errorf("%w: card holder name is required", ErrInvalidPayment)
		}
	case PaymentMethodPayPal:
		if p.PayPal == nil || strings.TrimSpace(p.PayPal.Email) == "" {
			return fmt.Errorf("%w: paypal email is required", ErrInvalidPayment)
		}
	case PaymentMethodBankTransfer:
		if p.BankTransfer == nil || strings.TrimSpace(p.BankTransfer.ReferenceCode) == "" {
			return fmt.Errorf("%w: transfer reference code is required", ErrInvalidPayment)
		}
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidPayment, p.Method)
	}
	return nil
}

// PurchaseRequest is what gets sent to the purchase service for a single book.
type PurchaseRequest struct {
	BookID        string
	PaymentMethod PaymentMethod
	Card          *CardDetails
	PayPal        *PayPalDetails
	BankTransfer  *BankTransferDetails
}

func NewPurchaseRequest(bookID string, p Payment) PurchaseRequest {
	req := PurchaseRequest{BookID: bookID, PaymentMethod: p.Method}
	switch p.Method {
	case PaymentMethodCard:
		if p.Card != nil {
			card := *p.Card
			card.Number = stripSpaces(card.Number)
			req.Card = &card
		}
	case PaymentMethodPayPal:
		if p.PayPal != nil {
			paypal := *p.PayPal
			req.PayPal = &paypal
		}
	case PaymentMethodBankTransfer:
		if p.BankTransfer != nil {
			transfer := *p.BankTransfer
			req.BankTransfer = &transfer
		}
	}
	return req
}

type PurchaseResult struct {
	Success bool
	Message string
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
