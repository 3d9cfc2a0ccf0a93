package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recurring payment frequencies
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// CadenceOffset returns the fixed-day offset for a frequency. A "month" is
// 30 days and a "year" 365, never calendar arithmetic.
func CadenceOffset(frequency string) (time.Duration, bool) {
	switch frequency {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, true
	case FrequencyMonthly:
		return 30 * 24 * time.Hour, true
	case FrequencyYearly:
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}

// RecurringPayment is a scheduled payment from a business account. Rows are
// never deleted; cancellation clears IsActive.
type RecurringPayment struct {
	ID              int64           `json:"id"`
	FromAccountID   int64           `json:"from_account_id"`
	ToAccountID     int64           `json:"to_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Frequency       string          `json:"frequency"`
	IsActive        bool            `json:"is_active"`
	NextPaymentDate time.Time       `json:"next_payment_date"`
	CreatedAt       time.Time       `json:"created_at"`

	// Filled by listing queries for display.
	FromAccountNumber string `json:"from_account_number,omitempty"`
	ToAccountNumber   string `json:"to_account_number,omitempty"`
	RecipientUsername string `json:"recipient_username,omitempty"`
}
