package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionTypeTransfer = "transfer"
	TransactionTypeCharge   = "charge"
	TransactionTypeSalary   = "salary"
)

// TransferResult reports a committed ledger operation: the appended
// transaction and both post-commit balances.
type TransferResult struct {
	Transaction *Transaction    `json:"transaction"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
}

// Transaction is an append-only record of a completed money movement.
type Transaction struct {
	ID              int64           `json:"id"`
	FromAccountID   int64           `json:"from_account_id"`
	ToAccountID     int64           `json:"to_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	TransactionType string          `json:"transaction_type"`
	CreatedAt       time.Time       `json:"created_at"`
}
