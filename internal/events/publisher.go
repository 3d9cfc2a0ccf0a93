package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Publisher emits domain events to an external broker.
type Publisher interface {
	Publish(topic string, event any) error
}

// TransactionCompleted is published after every committed ledger operation.
type TransactionCompleted struct {
	EventID         string          `json:"event_id"`
	TransactionID   int64           `json:"transaction_id"`
	FromAccountID   int64           `json:"from_account_id"`
	ToAccountID     int64           `json:"to_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// NoopPublisher discards events. Wired when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(topic string, event any) error { return nil }
