package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeItemAdded         Type = "item_added"
	TypeEmptyCart         Type = "empty_cart"
	TypePurchaseCompleted Type = "purchase_completed"
	TypeCheckoutOutcome   Type = "checkout_outcome"
	TypeCheckoutError     Type = "checkout_error"
)

func (t Type) String() string {
	return string(t)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type ItemFailure struct {
	BookID string `json:"bookId"`
	Title  string `json:"title"`
	Error  string `json:"error"`
}

// Event is a user-facing notification. Fields that do not apply to a given
// type are left empty.
type Event struct {
	ID         string        `json:"id"`
	Session    string        `json:"session"`
	Type       Type          `json:"type"`
	Level      Level         `json:"level"`
	Message    string        `json:"message"`
	BookID     string        `json:"bookId,omitempty"`
	Title      string        `json:"title,omitempty"`
	RunID      string        `json:"runId,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	Succeeded  int           `json:"succeeded,omitempty"`
	Failed     int           `json:"failed,omitempty"`
	Failures   []ItemFailure `json:"failures,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

func New(t Type, level Level, message string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Level:      level,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}
