package service

import (
	"context"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Store is the persistence contract the ledger engine runs against. The
// Postgres repository implements it for production; an in-memory store backs
// the tests.
//
// Transfer and SettleRecurringPayment are the atomic ledger operations:
// balance check, debit, credit, and log append must commit together or not at
// all, serialized against concurrent operations on the same accounts.
// SettleRecurringPayment additionally re-verifies, under the same lock as the
// mutation, that the payment is still active and still due at now, and
// advances the due date by one cadence offset from the locked row's prior due
// date; ErrPaymentNotDue means a concurrent run settled it first.
// CreateUserWithAccount commits the user and their first account together or
// not at all.
type Store interface {
	CreateUserWithAccount(ctx context.Context, user *models.User, account *models.Account) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)

	FindAccountByID(ctx context.Context, id int64) (*models.Account, error)
	FindAccountByNumber(ctx context.Context, number string) (*models.Account, error)
	FindAccountsByUser(ctx context.Context, userID int64) ([]models.Account, error)
	FindOldestAccountByUser(ctx context.Context, userID int64) (*models.Account, error)
	FindAccountSummary(ctx context.Context, number string) (*models.AccountSummary, error)

	Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, description, transactionType string) (*models.TransferResult, error)
	FindTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error)

	CreateRecurringPayment(ctx context.Context, payment *models.RecurringPayment) error
	FindRecurringPaymentByID(ctx context.Context, id int64) (*models.RecurringPayment, error)
	FindRecurringPaymentsByUser(ctx context.Context, userID int64) ([]models.RecurringPayment, error)
	DeactivateRecurringPayment(ctx context.Context, id int64) error
	FindDueRecurringPayments(ctx context.Context, now time.Time) ([]models.RecurringPayment, error)
	SettleRecurringPayment(ctx context.Context, paymentID int64, description string, now time.Time) (*models.Transaction, error)
}
