package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types
const (
	AccountTypePersonal = "personal"
	AccountTypeBusiness = "business"
)

// Account represents a bank account. AccountNumber is the externally
// addressable handle; ID is internal.
type Account struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	UserID        int64           `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AccountSummary is the privacy-limited projection returned by account
// search: never the balance, never the owner's other accounts.
type AccountSummary struct {
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	OwnerUsername string `json:"owner_username"`
}

// OpeningBalance is credited to every newly created account.
var OpeningBalance = decimal.RequireFromString("250000.00")
